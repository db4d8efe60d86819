package features

type posInfo struct {
	typ, subtype, description string
}

// pennTags maps Penn Treebank tags to coarse types.
var pennTags = map[string]posInfo{
	"NN":   {"noun", "singular", "noun, singular"},
	"NNS":  {"noun", "plural", "noun, plural"},
	"NNP":  {"noun", "proper_singular", "proper noun, singular"},
	"NNPS": {"noun", "proper_plural", "proper noun, plural"},
	"VB":   {"verb", "base", "verb, base form"},
	"VBD":  {"verb", "past", "verb, past tense"},
	"VBG":  {"verb", "gerund", "verb, gerund or present participle"},
	"VBN":  {"verb", "past_participle", "verb, past participle"},
	"VBP":  {"verb", "present", "verb, non-3rd person present"},
	"VBZ":  {"verb", "present_3rd", "verb, 3rd person singular present"},
	"JJ":   {"adjective", "base", "adjective"},
	"JJR":  {"adjective", "comparative", "adjective, comparative"},
	"JJS":  {"adjective", "superlative", "adjective, superlative"},
	"RB":   {"adverb", "base", "adverb"},
	"RBR":  {"adverb", "comparative", "adverb, comparative"},
	"RBS":  {"adverb", "superlative", "adverb, superlative"},
	"PRP":  {"pronoun", "personal", "personal pronoun"},
	"PRP$": {"pronoun", "possessive", "possessive pronoun"},
	"WP":   {"pronoun", "wh", "wh-pronoun"},
	"WP$":  {"pronoun", "wh_possessive", "possessive wh-pronoun"},
	"DT":   {"determiner", "base", "determiner"},
	"PDT":  {"determiner", "predeterminer", "predeterminer"},
	"WDT":  {"determiner", "wh", "wh-determiner"},
	"IN":   {"preposition", "base", "preposition or subordinating conjunction"},
	"TO":   {"preposition", "to", "to"},
	"CC":   {"conjunction", "coordinating", "coordinating conjunction"},
	"CD":   {"numeral", "cardinal", "cardinal number"},
	"UH":   {"interjection", "base", "interjection"},
	"MD":   {"modal", "base", "modal"},
	"SYM":  {"symbol", "base", "symbol"},
	"FW":   {"foreign", "base", "foreign word"},
	"LS":   {"list_marker", "base", "list item marker"},
	"RP":   {"particle", "base", "particle"},
	"EX":   {"pronoun", "existential", "existential there"},
	"WRB":  {"adverb", "wh", "wh-adverb"},
}

// closedClass tags function words directly.
var closedClass = map[string]string{
	"the": "DT", "a": "DT", "an": "DT", "this": "DT", "that": "DT", "these": "DT", "those": "DT",
	"every": "DT", "each": "DT", "some": "DT", "any": "DT", "no": "DT", "all": "PDT", "both": "PDT",
	"i": "PRP", "you": "PRP", "he": "PRP", "she": "PRP", "it": "PRP", "we": "PRP", "they": "PRP",
	"me": "PRP", "him": "PRP", "her": "PRP$", "us": "PRP", "them": "PRP",
	"my": "PRP$", "your": "PRP$", "his": "PRP$", "its": "PRP$", "our": "PRP$", "their": "PRP$",
	"who": "WP", "whom": "WP", "what": "WP", "whose": "WP$", "which": "WDT",
	"where": "WRB", "when": "WRB", "why": "WRB", "how": "WRB",
	"in": "IN", "on": "IN", "at": "IN", "of": "IN", "for": "IN", "with": "IN", "by": "IN", "from": "IN",
	"about": "IN", "into": "IN", "over": "IN", "under": "IN", "after": "IN", "before": "IN",
	"between": "IN", "through": "IN", "during": "IN", "without": "IN", "because": "IN", "if": "IN",
	"while": "IN", "although": "IN", "than": "IN", "along": "IN", "against": "IN",
	"to":  "TO",
	"and": "CC", "or": "CC", "but": "CC", "nor": "CC", "yet": "CC",
	"can": "MD", "could": "MD", "will": "MD", "would": "MD", "shall": "MD", "should": "MD",
	"may": "MD", "might": "MD", "must": "MD",
	"is": "VBZ", "are": "VBP", "am": "VBP", "was": "VBD", "were": "VBD", "be": "VB", "been": "VBN", "being": "VBG",
	"has": "VBZ", "have": "VBP", "had": "VBD", "do": "VBP", "does": "VBZ", "did": "VBD",
	"not": "RB", "very": "RB", "too": "RB", "also": "RB", "never": "RB", "always": "RB", "often": "RB",
	"there": "EX",
	"oh":    "UH", "wow": "UH", "hello": "UH", "yes": "UH",
	"one": "CD", "two": "CD", "three": "CD", "four": "CD", "five": "CD", "ten": "CD", "hundred": "CD",
	"up": "RP", "off": "RP",
}

var (
	determinerTags = map[string]bool{"DT": true, "PDT": true, "PRP$": true, "WDT": true, "CD": true}
	subjectTags    = map[string]bool{"PRP": true, "NNP": true, "WP": true, "EX": true}
	perfectAux     = map[string]bool{"have": true, "has": true, "had": true, "was": true, "were": true, "been": true, "be": true, "is": true, "are": true}
)
