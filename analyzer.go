package filedex

import (
	"strings"
	"unicode"
	"unicode/utf8"

	snowballeng "github.com/kljensen/snowball/english"
)

// tokenize splits text on any rune that is not a letter or a number,
// treating runs of delimiters as one boundary (no empty tokens). This is
// the one piece of tokenizer behavior every Tokenizer in this package
// shares, including the byte-for-byte quirk that "2.0" splits into ["2",
// "0"] rather than being kept as one token — callers that query for a
// literal version string must search for the phrase ["2", "0"].
func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// DefaultTokenizer lowercases and trims each token and nothing else: no
// stopword removal, no stemming. This is the literal-match default the
// phrase-search contract assumes — AnalyzingTokenizer is available when
// callers want stemming/stopwords instead.
type DefaultTokenizer struct{}

func (DefaultTokenizer) Tokens(text string) []Token {
	words := lowercaseFilter(tokenize(text))
	out := make([]Token, len(words))
	for i, w := range words {
		out[i] = Token(w)
	}
	return out
}

func (DefaultTokenizer) NormalizeSingleToken(t string) Token {
	return Token(strings.ToLower(strings.TrimSpace(t)))
}

func (t DefaultTokenizer) CreateSession() TokenizationSession {
	return newChunkSession(t.Tokens)
}

// AnalyzingTokenizer runs the teacher's stemming/stopword pipeline:
// tokenize, lowercase, optional stopword removal, minimum-length filter,
// optional Snowball stemming. Opt in to this when matching stemmed roots
// is preferred over literal word matching.
type AnalyzingTokenizer struct {
	MinTokenLength  int
	EnableStemming  bool
	EnableStopwords bool
}

// NewAnalyzingTokenizer returns an AnalyzingTokenizer with the teacher's
// original defaults (min length 2, stemming and stopwords both on).
func NewAnalyzingTokenizer() AnalyzingTokenizer {
	return AnalyzingTokenizer{MinTokenLength: 2, EnableStemming: true, EnableStopwords: true}
}

func (a AnalyzingTokenizer) Tokens(text string) []Token {
	words := tokenize(text)
	words = lowercaseFilter(words)
	if a.EnableStopwords {
		words = stopwordFilter(words)
	}
	words = lengthFilter(words, a.MinTokenLength)
	if a.EnableStemming {
		words = stemmerFilter(words)
	}
	out := make([]Token, len(words))
	for i, w := range words {
		out[i] = Token(w)
	}
	return out
}

func (a AnalyzingTokenizer) NormalizeSingleToken(t string) Token {
	norm := strings.ToLower(strings.TrimSpace(t))
	if a.EnableStemming {
		norm = snowballeng.Stem(norm, false)
	}
	return Token(norm)
}

func (a AnalyzingTokenizer) CreateSession() TokenizationSession {
	return newChunkSession(a.Tokens)
}

func lowercaseFilter(tokens []string) []string {
	r := make([]string, len(tokens))
	for i, t := range tokens {
		r[i] = strings.ToLower(t)
	}
	return r
}

func stopwordFilter(tokens []string) []string {
	r := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, stop := englishStopwords[t]; !stop {
			r = append(r, t)
		}
	}
	return r
}

func lengthFilter(tokens []string, minLength int) []string {
	r := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if len(t) >= minLength {
			r = append(r, t)
		}
	}
	return r
}

func stemmerFilter(tokens []string) []string {
	r := make([]string, len(tokens))
	for i, t := range tokens {
		r[i] = snowballeng.Stem(t, false)
	}
	return r
}

// chunkSession is the shared TokenizationSession implementation for both
// tokenizers: it holds back a trailing run of letters/digits across
// ProcessText calls in case the next chunk continues the same word, so a
// word split across a chunk boundary is still tokenized as one word.
type chunkSession struct {
	tokenize func(string) []Token
	carry    string
}

func newChunkSession(tokenize func(string) []Token) *chunkSession {
	return &chunkSession{tokenize: tokenize}
}

func (s *chunkSession) ProcessText(chunk string) []Token {
	combined := s.carry + chunk
	if combined == "" {
		return nil
	}
	last, _ := utf8.DecodeLastRuneInString(combined)
	if !unicode.IsLetter(last) && !unicode.IsNumber(last) {
		s.carry = ""
		return s.tokenize(combined)
	}
	idx := trailingWordBoundary(combined)
	s.carry = combined[idx:]
	return s.tokenize(combined[:idx])
}

func (s *chunkSession) Finalize() []Token {
	if s.carry == "" {
		return nil
	}
	out := s.tokenize(s.carry)
	s.carry = ""
	return out
}

// trailingWordBoundary returns the byte index where the trailing run of
// letters/digits in s begins (len(s) if s doesn't end in one).
func trailingWordBoundary(s string) int {
	i := len(s)
	for i > 0 {
		r, size := utf8.DecodeLastRuneInString(s[:i])
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) {
			break
		}
		i -= size
	}
	return i
}

// englishStopwords are common English words excluded from indexing when
// AnalyzingTokenizer.EnableStopwords is set.
var englishStopwords = map[string]struct{}{
	"a":            {},
	"about":        {},
	"above":        {},
	"across":       {},
	"after":        {},
	"afterwards":   {},
	"again":        {},
	"against":      {},
	"all":          {},
	"almost":       {},
	"alone":        {},
	"along":        {},
	"already":      {},
	"also":         {},
	"although":     {},
	"always":       {},
	"am":           {},
	"among":        {},
	"amongst":      {},
	"amoungst":     {},
	"amount":       {},
	"an":           {},
	"and":          {},
	"another":      {},
	"any":          {},
	"anyhow":       {},
	"anyone":       {},
	"anything":     {},
	"anyway":       {},
	"anywhere":     {},
	"are":          {},
	"around":       {},
	"as":           {},
	"at":           {},
	"back":         {},
	"be":           {},
	"became":       {},
	"because":      {},
	"become":       {},
	"becomes":      {},
	"becoming":     {},
	"been":         {},
	"before":       {},
	"beforehand":   {},
	"behind":       {},
	"being":        {},
	"below":        {},
	"beside":       {},
	"besides":      {},
	"between":      {},
	"beyond":       {},
	"bill":         {},
	"both":         {},
	"bottom":       {},
	"but":          {},
	"by":           {},
	"call":         {},
	"can":          {},
	"cannot":       {},
	"cant":         {},
	"co":           {},
	"con":          {},
	"could":        {},
	"couldnt":      {},
	"cry":          {},
	"de":           {},
	"describe":     {},
	"detail":       {},
	"do":           {},
	"done":         {},
	"down":         {},
	"due":          {},
	"during":       {},
	"each":         {},
	"eg":           {},
	"eight":        {},
	"either":       {},
	"eleven":       {},
	"else":         {},
	"elsewhere":    {},
	"empty":        {},
	"enough":       {},
	"etc":          {},
	"even":         {},
	"ever":         {},
	"every":        {},
	"everyone":     {},
	"everything":   {},
	"everywhere":   {},
	"except":       {},
	"few":          {},
	"fifteen":      {},
	"fify":         {},
	"fill":         {},
	"find":         {},
	"fire":         {},
	"first":        {},
	"five":         {},
	"for":          {},
	"former":       {},
	"formerly":     {},
	"forty":        {},
	"found":        {},
	"four":         {},
	"from":         {},
	"front":        {},
	"full":         {},
	"further":      {},
	"get":          {},
	"give":         {},
	"go":           {},
	"had":          {},
	"has":          {},
	"hasnt":        {},
	"have":         {},
	"he":           {},
	"hence":        {},
	"her":          {},
	"here":         {},
	"hereafter":    {},
	"hereby":       {},
	"herein":       {},
	"hereupon":     {},
	"hers":         {},
	"herself":      {},
	"him":          {},
	"himself":      {},
	"his":          {},
	"how":          {},
	"however":      {},
	"hundred":      {},
	"ie":           {},
	"if":           {},
	"in":           {},
	"inc":          {},
	"indeed":       {},
	"interest":     {},
	"into":         {},
	"is":           {},
	"it":           {},
	"its":          {},
	"itself":       {},
	"keep":         {},
	"last":         {},
	"latter":       {},
	"latterly":     {},
	"least":        {},
	"less":         {},
	"ltd":          {},
	"made":         {},
	"many":         {},
	"may":          {},
	"me":           {},
	"meanwhile":    {},
	"might":        {},
	"mill":         {},
	"mine":         {},
	"more":         {},
	"moreover":     {},
	"most":         {},
	"mostly":       {},
	"move":         {},
	"much":         {},
	"must":         {},
	"my":           {},
	"myself":       {},
	"name":         {},
	"namely":       {},
	"neither":      {},
	"never":        {},
	"nevertheless": {},
	"next":         {},
	"nine":         {},
	"no":           {},
	"nobody":       {},
	"none":         {},
	"noone":        {},
	"nor":          {},
	"not":          {},
	"nothing":      {},
	"now":          {},
	"nowhere":      {},
	"of":           {},
	"off":          {},
	"often":        {},
	"on":           {},
	"once":         {},
	"one":          {},
	"only":         {},
	"onto":         {},
	"or":           {},
	"other":        {},
	"others":       {},
	"otherwise":    {},
	"our":          {},
	"ours":         {},
	"ourselves":    {},
	"out":          {},
	"over":         {},
	"own":          {},
	"part":         {},
	"per":          {},
	"perhaps":      {},
	"please":       {},
	"put":          {},
	"rather":       {},
	"re":           {},
	"same":         {},
	"see":          {},
	"seem":         {},
	"seemed":       {},
	"seeming":      {},
	"seems":        {},
	"serious":      {},
	"several":      {},
	"she":          {},
	"should":       {},
	"show":         {},
	"side":         {},
	"since":        {},
	"sincere":      {},
	"six":          {},
	"sixty":        {},
	"so":           {},
	"some":         {},
	"somehow":      {},
	"someone":      {},
	"something":    {},
	"sometime":     {},
	"sometimes":    {},
	"somewhere":    {},
	"still":        {},
	"such":         {},
	"system":       {},
	"take":         {},
	"ten":          {},
	"than":         {},
	"that":         {},
	"the":          {},
	"their":        {},
	"them":         {},
	"themselves":   {},
	"then":         {},
	"thence":       {},
	"there":        {},
	"thereafter":   {},
	"thereby":      {},
	"therefore":    {},
	"therein":      {},
	"thereupon":    {},
	"these":        {},
	"they":         {},
	"thickv":       {},
	"thin":         {},
	"third":        {},
	"this":         {},
	"those":        {},
	"though":       {},
	"three":        {},
	"through":      {},
	"throughout":   {},
	"thru":         {},
	"thus":         {},
	"to":           {},
	"together":     {},
	"too":          {},
	"top":          {},
	"toward":       {},
	"towards":      {},
	"twelve":       {},
	"twenty":       {},
	"two":          {},
	"un":           {},
	"under":        {},
	"until":        {},
	"up":           {},
	"upon":         {},
	"us":           {},
	"very":         {},
	"via":          {},
	"was":          {},
	"we":           {},
	"well":         {},
	"were":         {},
	"what":         {},
	"whatever":     {},
	"when":         {},
	"whence":       {},
	"whenever":     {},
	"where":        {},
	"whereafter":   {},
	"whereas":      {},
	"whereby":      {},
	"wherein":      {},
	"whereupon":    {},
	"wherever":     {},
	"whether":      {},
	"which":        {},
	"while":        {},
	"whither":      {},
	"who":          {},
	"whoever":      {},
	"whole":        {},
	"whom":         {},
	"whose":        {},
	"why":          {},
	"will":         {},
	"with":         {},
	"within":       {},
	"without":      {},
	"would":        {},
	"yet":          {},
	"you":          {},
	"your":         {},
	"yours":        {},
	"yourself":     {},
	"yourselves":   {}}
