package sentiment

var defaultLexicon = map[string]float64{
	// positive
	"good": 1.9, "great": 3.1, "awesome": 3.1, "amazing": 2.8, "love": 3.2,
	"loved": 2.9, "lovely": 2.8, "like": 1.5, "nice": 1.8, "happy": 2.7,
	"glad": 2.0, "thanks": 1.9, "thank": 1.5, "fun": 2.3, "funny": 1.9,
	"excellent": 2.7, "wonderful": 2.7, "fantastic": 2.6, "best": 3.2,
	"beautiful": 2.9, "perfect": 2.7, "congrats": 2.4, "congratulations": 2.9,
	"excited": 2.2, "cool": 1.3, "yay": 2.4, "haha": 1.6, "hahaha": 1.8,
	"lol": 1.8, "enjoy": 2.2, "enjoyed": 2.3, "proud": 2.1, "sweet": 2.0,
	"miss": 0.6, "welcome": 2.0, "yes": 1.0, "ok": 0.4, "okay": 0.4,
	"kind": 1.6, "brilliant": 2.8, "delicious": 2.7, "safe": 1.9, "win": 2.8,
	"won": 2.7, "celebrate": 2.7, "hug": 2.1, "hugs": 2.2, "smile": 1.5,

	// negative
	"bad": -2.5, "terrible": -2.1, "awful": -2.0, "hate": -2.7, "hated": -3.2,
	"sad": -2.1, "angry": -2.3, "annoyed": -1.6, "annoying": -1.7, "sorry": -0.3,
	"worst": -3.1, "horrible": -2.5, "upset": -1.6, "cry": -2.1, "crying": -2.1,
	"tired": -1.9, "sick": -1.6, "ill": -1.6, "hurt": -2.4, "pain": -2.3,
	"problem": -1.7, "problems": -1.7, "worried": -1.2, "worry": -1.9,
	"scared": -1.9, "afraid": -2.0, "boring": -1.3, "bored": -1.1,
	"disappointed": -1.9, "fail": -2.5, "failed": -2.3, "lost": -1.3,
	"lonely": -1.8, "stress": -1.8, "stressed": -1.4, "ugh": -1.8,
	"damn": -1.7, "unfortunately": -1.6, "wrong": -2.1, "late": -0.7,
	"miserable": -2.2, "died": -2.6, "funeral": -1.5,
}

var emojiWeights = map[rune]float64{
	'\U0001F600': 2.0, '\U0001F601': 2.0, '\U0001F602': 2.0, '\U0001F603': 2.0,
	'\U0001F604': 2.0, '\U0001F60A': 2.0, '\U0001F60D': 2.5, '\U0001F618': 2.3,
	'\U0001F970': 2.5, '\U0001F642': 1.2, '\U0001F44D': 1.5, '\U0001F389': 2.0,
	'\u2764': 2.5, '\U0001F923': 2.0,
	'\U0001F622': -2.0, '\U0001F62D': -2.2, '\U0001F61E': -1.8, '\U0001F620': -2.3,
	'\U0001F621': -2.5, '\U0001F641': -1.2, '\U0001F614': -1.6, '\U0001F44E': -1.5,
	'\U0001F494': -2.4,
}
