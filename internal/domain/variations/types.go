package variations

// Type names the edit operation that produced a candidate.
type Type string

const (
	Typo              Type = "typo"
	Homoglyph         Type = "homoglyph"
	Hyphen            Type = "hyphen"
	TLDSwap           Type = "tld_swap"
	Subdomain         Type = "subdomain"
	Bitsquat          Type = "bitsquat"
	VowelSwap         Type = "vowel_swap"
	DoubleLetter      Type = "double_letter"
	MissingLetter     Type = "missing_letter"
	AddedLetter       Type = "added_letter"
	KeyboardProximity Type = "keyboard_proximity"
)

// Candidate is an ephemeral lookalike domain; it is never persisted directly.
type Candidate struct {
	Domain string `json:"domain"`
	Type   Type   `json:"type"`
}

// Priority is the order used when a variation budget truncates the candidate set.
// Added-letter comes last and is additionally hard-capped.
var Priority = []Type{
	TLDSwap,
	Homoglyph,
	MissingLetter,
	KeyboardProximity,
	Typo,
	DoubleLetter,
	VowelSwap,
	Hyphen,
	Subdomain,
	Bitsquat,
	AddedLetter,
}
