package dataset

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/kapu/blockext-go/internal/domain"
	"github.com/kapu/blockext-go/internal/util"
	apperrors "github.com/kapu/blockext-go/pkg/errors"
	"go.uber.org/zap"
)

// DeleteLoaded is the example index that removes every restored example of a label.
const DeleteLoaded = -1

var ErrUnknownLabel = errors.New("unknown label")

// Manager owns the label list and the examples attached to each label.
//
// The label list is either exactly [domain.EmptyLabel] or the list of real
// labels, and a real label is in the list iff it has an entry in records.
type Manager struct {
	labels  []string
	records map[string][]Example
	mu      sync.RWMutex
	logger  *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		labels:  []string{domain.EmptyLabel},
		records: make(map[string][]Example),
		logger:  util.OrNop(logger),
	}
}

// NewLabel adds name (if absent) and resets its examples to empty.
func (m *Manager) NewLabel(name string) error {
	if err := validateLabel(name); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.addLabelLocked(name)
	m.records[name] = []Example{}

	m.logger.Debug("Label added", zap.String("label", name))
	return nil
}

// NewExamples appends each text not already among the label's canonical
// examples. The label is created when missing.
func (m *Manager) NewExamples(texts []string, label string) (int, error) {
	if err := validateLabel(label); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.addLabelLocked(label)
	records := m.records[label]
	added := 0
	for _, text := range texts {
		if containsText(records, OriginNew, text) {
			continue
		}
		records = append(records, newExample(text, OriginNew))
		added++
	}
	m.records[label] = records

	m.logger.Debug("Examples added",
		zap.String("label", label),
		zap.Int("requested", len(texts)),
		zap.Int("added", added),
	)
	return added, nil
}

// RenameLabel moves oldName's examples to newName and moves the label to the
// end of the list.
func (m *Manager) RenameLabel(oldName, newName string) error {
	if err := validateLabel(newName); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	records, ok := m.records[oldName]
	if !ok {
		return ErrUnknownLabel
	}
	if oldName == newName {
		return nil
	}
	if _, exists := m.records[newName]; exists {
		return apperrors.NewValidationError("label already exists", "label", newName)
	}

	m.records[newName] = records
	delete(m.records, oldName)
	m.labels = removeString(m.labels, oldName)
	m.labels = append(m.labels, newName)

	m.logger.Debug("Label renamed", zap.String("from", oldName), zap.String("to", newName))
	return nil
}

// DeleteExample removes the index-th canonical example of label, or every
// restored example when index is DeleteLoaded. It returns how many examples
// were removed.
func (m *Manager) DeleteExample(label string, index int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records, ok := m.records[label]
	if !ok {
		return 0, ErrUnknownLabel
	}

	if index == DeleteLoaded {
		kept := make([]Example, 0, len(records))
		for _, r := range records {
			if r.Origin != OriginLoaded {
				kept = append(kept, r)
			}
		}
		removed := len(records) - len(kept)
		m.records[label] = kept
		m.logger.Debug("Loaded examples deleted", zap.String("label", label), zap.Int("removed", removed))
		return removed, nil
	}

	if index < 0 {
		return 0, apperrors.NewValidationError("example index out of range", "index", index)
	}

	seen := 0
	for i, r := range records {
		if r.Origin != OriginNew {
			continue
		}
		if seen == index {
			m.records[label] = append(records[:i:i], records[i+1:]...)
			return 1, nil
		}
		seen++
	}
	return 0, apperrors.NewValidationError("example index out of range", "index", index)
}

// ClearAllWithLabel drops label and its examples. It reports whether the label existed.
func (m *Manager) ClearAllWithLabel(label string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[label]; !ok {
		return false
	}
	delete(m.records, label)
	m.labels = removeString(m.labels, label)
	if len(m.labels) == 0 {
		m.labels = []string{domain.EmptyLabel}
	}

	m.logger.Debug("Label cleared", zap.String("label", label))
	return true
}

func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()
}

func (m *Manager) clearLocked() {
	m.labels = []string{domain.EmptyLabel}
	m.records = make(map[string][]Example)
}

// LoadModelData replaces the dataset with a project payload. Working-only
// texts beyond the canonical ones become restored examples. Labels follow
// sorted key order.
func (m *Manager) LoadModelData(data domain.ModelData) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearLocked()

	keys := make([]string, 0, len(data.TextData))
	for label := range data.TextData {
		if label != domain.EmptyLabel {
			keys = append(keys, label)
		}
	}
	sort.Strings(keys)

	restored := 0
	for _, label := range keys {
		m.addLabelLocked(label)

		remaining := make(map[string]int)
		var records []Example
		for _, text := range data.TextData[label] {
			if containsText(records, OriginNew, text) {
				continue
			}
			records = append(records, newExample(text, OriginNew))
			remaining[text]++
		}

		var loaded []Example
		for _, text := range data.ClassifierData[label] {
			if remaining[text] > 0 {
				remaining[text]--
				continue
			}
			loaded = append(loaded, newExample(text, OriginLoaded))
		}
		restored += len(loaded)
		m.records[label] = append(loaded, records...)
	}

	m.logger.Info("Model data loaded",
		zap.Int("labels", len(keys)),
		zap.Int("restored_examples", restored),
	)
}

// Labels returns the label list, which is [""] when no real label exists.
func (m *Manager) Labels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.labels...)
}

// RealLabels returns the label list without the empty marker.
func (m *Manager) RealLabels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.isEmptyLocked() {
		return nil
	}
	return append([]string(nil), m.labels...)
}

func (m *Manager) IsEmpty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isEmptyLocked()
}

func (m *Manager) isEmptyLocked() bool {
	return len(m.labels) == 1 && m.labels[0] == domain.EmptyLabel && len(m.records) == 0
}

func (m *Manager) HasLabel(label string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[label]
	return ok
}

// Canonical returns label -> canonical examples.
func (m *Manager) Canonical() map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]string, len(m.records))
	for label, records := range m.records {
		out[label] = canonical(records)
	}
	return out
}

// Working returns label -> every example, restored ones first.
func (m *Manager) Working() map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]string, len(m.records))
	for label, records := range m.records {
		out[label] = working(records)
	}
	return out
}

func (m *Manager) Examples(label string) ([]Example, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records, ok := m.records[label]
	if !ok {
		return nil, ErrUnknownLabel
	}
	return append([]Example(nil), records...), nil
}

// ModelData snapshots both views in the project payload shape.
func (m *Manager) ModelData() domain.ModelData {
	data := domain.NewModelData()
	data.TextData = m.Canonical()
	data.ClassifierData = m.Working()
	data.NextLabelNumber = len(data.TextData) + 1
	return data
}

// IsExample reports whether text is a canonical example of label, ignoring case.
func (m *Manager) IsExample(text, label string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records[label] {
		if r.Origin == OriginNew && strings.EqualFold(r.Text, text) {
			return true
		}
	}
	return false
}

// TrainingSet flattens the canonical examples in label-list order. Restored
// examples stay out of training. classes[i] is the label for index i in
// labelIdx.
func (m *Manager) TrainingSet() (texts []string, labelIdx []int, classes []string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.isEmptyLocked() {
		return nil, nil, nil
	}

	classes = append([]string(nil), m.labels...)
	for idx, label := range classes {
		for _, text := range canonical(m.records[label]) {
			if util.IsBlank(text) {
				continue
			}
			texts = append(texts, text)
			labelIdx = append(labelIdx, idx)
		}
	}
	return texts, labelIdx, classes
}

// addLabelLocked drops the empty marker and appends label when missing.
func (m *Manager) addLabelLocked(label string) {
	if len(m.records) == 0 {
		m.labels = removeString(m.labels, domain.EmptyLabel)
	}
	if _, ok := m.records[label]; !ok {
		m.labels = append(m.labels, label)
		m.records[label] = []Example{}
	}
}

func validateLabel(name string) error {
	if name == domain.EmptyLabel {
		return apperrors.NewValidationError("label name must not be empty", "label", name)
	}
	return nil
}

func removeString(list []string, value string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != value {
			out = append(out, v)
		}
	}
	return out
}
