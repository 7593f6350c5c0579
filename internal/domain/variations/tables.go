package variations

const (
	alphabet = "abcdefghijklmnopqrstuvwxyz"
	vowels   = "aeiou"
)

// DefaultMaxAddedLetter bounds the inserted-letter class, which grows as len(seed)*26.
const DefaultMaxAddedLetter = 60

// maxHomoglyphsPerChar limits homoglyph fan-out per character.
const maxHomoglyphsPerChar = 3

// qwertyAdjacent maps each key to its neighbours on a US QWERTY layout.
var qwertyAdjacent = map[byte]string{
	'q': "wa", 'w': "qeas", 'e': "wrsd", 'r': "etdf", 't': "ryfg",
	'y': "tugh", 'u': "yihj", 'i': "uojk", 'o': "ipkl", 'p': "ol",
	'a': "qwsz", 's': "weadzx", 'd': "erfsxc", 'f': "rtdgcv", 'g': "tyfhvb",
	'h': "yugjbn", 'j': "uihknm", 'k': "iojlm", 'l': "opk",
	'z': "asx", 'x': "zsdc", 'c': "xdfv", 'v': "cfgb", 'b': "vghn",
	'n': "bhjm", 'm': "njk",
	'1': "2q", '2': "13qw", '3': "24we", '4': "35er", '5': "46rt",
	'6': "57ty", '7': "68yu", '8': "79ui", '9': "80io", '0': "9op",
}

// homoglyphs holds ASCII-safe lookalikes, ordered by how convincing they are.
var homoglyphs = map[byte][]string{
	'a': {"4", "q", "o"},
	'b': {"6", "d", "lb"},
	'c': {"e", "k", "cc"},
	'd': {"b", "cl", "ol"},
	'e': {"3", "c", "a"},
	'g': {"9", "q", "6"},
	'h': {"lh", "b", "n"},
	'i': {"1", "l", "j"},
	'k': {"lc", "lk", "x"},
	'l': {"1", "i", "j"},
	'm': {"rn", "nn", "n"},
	'n': {"m", "r", "h"},
	'o': {"0", "q", "c"},
	'p': {"q", "b"},
	'q': {"g", "9", "p"},
	's': {"5", "z", "c"},
	't': {"7", "f", "l"},
	'u': {"v", "w", "ii"},
	'v': {"u", "y"},
	'w': {"vv", "uu", "u"},
	'y': {"v", "j"},
	'z': {"2", "s"},
	'0': {"o"},
	'1': {"l", "i"},
	'5': {"s"},
}

// commonTLDs are the swap targets for tld_swap candidates.
var commonTLDs = []string{
	"com", "net", "org", "co", "io", "info", "biz", "us", "app", "online",
	"site", "xyz", "shop", "store", "me", "tech", "ai", "de", "uk", "co.uk",
}

// PriorityTLDs are always checked first, regardless of budget ordering.
var PriorityTLDs = []string{"com", "net", "org"}

var subdomainPrefixes = []string{"www", "login", "secure", "account", "my", "support", "verify", "signin"}

var subdomainSuffixes = []string{"login", "secure", "support", "account", "verify", "online", "app"}
