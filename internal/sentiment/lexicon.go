package sentiment

var defaultNegators = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "don't": {}, "dont": {}, "doesn't": {}, "doesnt": {},
	"isn't": {}, "isnt": {}, "aren't": {}, "arent": {}, "wasn't": {}, "wasnt": {},
	"can't": {}, "cant": {}, "won't": {}, "wont": {}, "didn't": {}, "didnt": {},
}

// Subset of the AFINN-165 word list.
var defaultLexicon = map[string]int{
	"abandon": -2, "abuse": -3, "accept": 1, "admire": 3, "adore": 3, "afraid": -2,
	"agree": 1, "amazing": 4, "angry": -3, "annoy": -2, "annoying": -2, "anxious": -2,
	"awesome": 4, "awful": -3, "bad": -3, "beautiful": 3, "best": 3, "better": 2,
	"bless": 2, "bored": -2, "boring": -3, "brave": 2, "brilliant": 4, "broken": -1,
	"calm": 2, "care": 2, "cheer": 2, "clever": 2, "cool": 1, "crash": -2,
	"cruel": -3, "cry": -1, "cute": 2, "damn": -2, "danger": -2, "dead": -3,
	"delight": 3, "depressed": -2, "destroy": -3, "dirty": -2, "disappointed": -2, "disaster": -2,
	"dislike": -2, "dumb": -3, "easy": 1, "enjoy": 2, "evil": -3, "excellent": 3,
	"excited": 3, "fail": -2, "failure": -2, "fair": 2, "fantastic": 4, "fear": -2,
	"fine": 2, "fool": -2, "free": 1, "friendly": 2, "fun": 4, "funny": 4,
	"glad": 3, "good": 3, "great": 3, "happy": 3, "harm": -2, "hate": -3,
	"help": 2, "helpful": 2, "hero": 2, "hope": 2, "horrible": -3, "hurt": -2,
	"ill": -2, "interesting": 2, "joy": 3, "kind": 2, "kill": -3, "laugh": 1,
	"lazy": -1, "like": 2, "lonely": -2, "lose": -3, "lost": -3, "love": 3,
	"lucky": 3, "mad": -3, "mess": -2, "miss": -2, "nasty": -3, "nice": 3,
	"ok": 0, "pain": -2, "perfect": 3, "pleasant": 3, "poor": -2, "pretty": 1,
	"proud": 2, "rude": -2, "sad": -2, "safe": 1, "scary": -2, "shame": -2,
	"sick": -2, "silly": -1, "smart": 1, "smile": 2, "sorry": -1, "stupid": -2,
	"success": 2, "super": 3, "terrible": -3, "thank": 2, "thanks": 2, "tired": -2,
	"trouble": -2, "ugly": -3, "unhappy": -2, "upset": -2, "useful": 2, "useless": -2,
	"weak": -2, "win": 4, "wonderful": 4, "worry": -3, "worse": -3, "worst": -3,
	"wow": 4, "wrong": -2, "yay": 2, "yes": 1, "yummy": 3,
}
