package embedding

import "strings"

// Special token IDs of the BERT uncased vocabulary that MiniLM-style models share.
const (
	clsTokenID  = 101
	sepTokenID  = 102
	firstWordID = 1000  // IDs below this are special or unused entries
	vocabSize   = 30522 // bert-base-uncased
)

// Encoding is one tokenized input, zero padded ([PAD]) to the model's sequence length.
type Encoding struct {
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64

	// Tokens counts the non-padding positions, including [CLS] and [SEP] markers.
	Tokens int
}

// Tokenizer encodes text for BERT-style models.
type Tokenizer interface {
	Encode(text string, maxTokens int) Encoding
}

// PhotoTokenizer maps words to hashed vocabulary IDs so a model runs without a vocab file.
//
// Photo text is line oriented (see PhotoText): the first line is the caption and later lines
// hold the description and tags. The first line becomes segment A and the rest segment B,
// each closed by [SEP]. When the sequence is too long, the longer segment is trimmed first
// so tags survive a long description.
type PhotoTokenizer struct{}

// Encode tokenizes text into at most maxTokens positions (256 when not positive).
func (t *PhotoTokenizer) Encode(text string, maxTokens int) Encoding {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	first, rest, _ := strings.Cut(text, "\n")
	a := wordIDs(first)
	b := wordIDs(rest)

	// [CLS] a [SEP], plus b [SEP] when there is a second segment.
	budget := maxTokens - 2
	if len(b) > 0 {
		budget--
	}
	for len(a)+len(b) > budget && budget >= 0 {
		if len(a) > len(b) {
			a = a[:len(a)-1]
		} else {
			b = b[:len(b)-1]
		}
	}

	enc := Encoding{
		InputIDs:      make([]int64, maxTokens),
		AttentionMask: make([]int64, maxTokens),
		TokenTypeIDs:  make([]int64, maxTokens),
	}
	put := func(id, segment int64) {
		if enc.Tokens >= maxTokens {
			return
		}
		enc.InputIDs[enc.Tokens] = id
		enc.AttentionMask[enc.Tokens] = 1
		enc.TokenTypeIDs[enc.Tokens] = segment
		enc.Tokens++
	}
	put(clsTokenID, 0)
	for _, id := range a {
		put(id, 0)
	}
	put(sepTokenID, 0)
	if len(b) > 0 {
		for _, id := range b {
			put(id, 1)
		}
		put(sepTokenID, 1)
	}
	return enc
}

func wordIDs(text string) []int64 {
	words := Words(text)
	ids := make([]int64, len(words))
	for i, w := range words {
		ids[i] = int64(firstWordID + HashString(w)%(vocabSize-firstWordID))
	}
	return ids
}

// meanPool averages the token vectors of hidden (tokens x dim, row major) whose attention mask
// is set. Models exported with only last_hidden_state need this to yield a sentence vector.
func meanPool(hidden []float32, mask []int64, dim int) []float32 {
	out := make([]float32, dim)
	var n float32
	for tok, m := range mask {
		if m == 0 || (tok+1)*dim > len(hidden) {
			continue
		}
		row := hidden[tok*dim : (tok+1)*dim]
		for i, v := range row {
			out[i] += v
		}
		n++
	}
	if n == 0 {
		return out
	}
	for i := range out {
		out[i] /= n
	}
	return out
}
