package engine

import "math/rand"

// Letters is the prompt alphabet: the Hindi consonants players must sing
// from. Draws are uniform and independent, so back-to-back repeats happen.
var Letters = []string{
	"क", "ख", "ग", "घ", "च", "छ", "ज", "झ", "ट", "ठ",
	"ड", "ढ", "ण", "त", "थ", "द", "ध", "न", "प", "फ",
	"ब", "भ", "म", "य", "र", "ल", "व", "श", "ष", "स", "ह",
}

func drawLetter(rng *rand.Rand) string {
	return Letters[rng.Intn(len(Letters))]
}
