package labels

import "fmt"

// Alphabet is the ordered symbol set recognised by the model.
// A symbol's code is its position in this string plus one.
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Blank is the CTC blank code. Encode never produces it.
const Blank int32 = 0

// NumClasses is the number of output classes a recognition head needs: every
// symbol plus the blank
const NumClasses = len(Alphabet) + 1

var (
	charToCode [256]int32
	codeToChar [len(Alphabet) + 1]byte
)

func init() {
	for i := 0; i < len(Alphabet); i++ {
		code := int32(i + 1)
		charToCode[Alphabet[i]] = code
		codeToChar[code] = Alphabet[i]
	}
}

// Encode maps every character of text to its code.
// The mapping is case-sensitive; callers must lower-case input themselves.
func Encode(text string) ([]int32, error) {
	codes := make([]int32, 0, len(text))
	for pos, r := range text {
		if r >= 256 || charToCode[r] == 0 {
			return nil, &UnsupportedCharacterError{Text: text, Char: r, Pos: pos}
		}
		codes = append(codes, charToCode[r])
	}
	return codes, nil
}

// Decode is the inverse of Encode
func Decode(codes []int32) (string, error) {
	buf := make([]byte, len(codes))
	for i, code := range codes {
		if !ValidCode(code) {
			return "", &InvalidCodeError{Code: code, Pos: i}
		}
		buf[i] = codeToChar[code]
	}
	return string(buf), nil
}

// ValidCode reports whether code maps to an Alphabet symbol
func ValidCode(code int32) bool {
	return code >= 1 && int(code) <= len(Alphabet)
}

// DecodeGreedy turns a per-frame sequence of best codes into text by merging
// repeated codes and dropping blanks. Codes outside the alphabet count as blank.
func DecodeGreedy(frames []int32) string {
	buf := make([]byte, 0, len(frames))
	prev := Blank
	for _, code := range frames {
		if !ValidCode(code) {
			code = Blank
		}
		if code != Blank && code != prev {
			buf = append(buf, codeToChar[code])
		}
		prev = code
	}
	return string(buf)
}

// Split cuts a concatenated label vector back into per-sample sequences.
// The returned slices alias labels.
func Split(labels []int32, lengths []int32) ([][]int32, error) {
	out := make([][]int32, len(lengths))
	offset := 0
	for i, n := range lengths {
		if n < 0 {
			return nil, fmt.Errorf("negative length %d at position %d", n, i)
		}
		end := offset + int(n)
		if end > len(labels) {
			return nil, fmt.Errorf("lengths exceed label count: need %d, have %d", end, len(labels))
		}
		out[i] = labels[offset:end:end]
		offset = end
	}
	if offset != len(labels) {
		return nil, fmt.Errorf("lengths sum to %d but there are %d labels", offset, len(labels))
	}
	return out, nil
}
