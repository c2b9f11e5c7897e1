package descriptor

import (
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokString
	tokPlaceholder
	tokOperator
	tokComma
)

type token struct {
	kind   tokenKind
	text   string // quotes stripped for tokString, '?' stripped for tokPlaceholder
	offset int
}

// lex splits descriptor text into tokens. Quoted strings may contain
// whitespace but no quote characters.
func lex(src string) ([]token, *ParseError) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c < 0x80 && unicode.IsSpace(rune(c)):
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ",", offset: i})
			i++
		case c == '\'':
			end := strings.IndexByte(src[i+1:], '\'')
			if end < 0 {
				return nil, &ParseError{Descriptor: src, Offset: i, Message: "unterminated string"}
			}
			toks = append(toks, token{kind: tokString, text: src[i+1 : i+1+end], offset: i})
			i += end + 2
		case c == '?':
			j := i + 1
			for j < len(src) && isWordByte(src[j]) && src[j] != '?' {
				j++
			}
			if j < len(src) && src[j] == '[' {
				j++
			}
			toks = append(toks, token{kind: tokPlaceholder, text: src[i+1 : j], offset: i})
			i = j
		case c == '=' || c == '<' || c == '>' || c == '!':
			j := i + 1
			if j < len(src) && src[j] == '=' && c != '=' {
				j++
			}
			op := src[i:j]
			if op == "!" {
				return nil, &ParseError{Descriptor: src, Offset: i, Message: "expected '!='"}
			}
			toks = append(toks, token{kind: tokOperator, text: op, offset: i})
			i = j
		default:
			j := i
			for j < len(src) && isWordByte(src[j]) {
				j++
			}
			if j == i {
				return nil, &ParseError{Descriptor: src, Offset: i, Message: "unexpected character " + string(c)}
			}
			toks = append(toks, token{kind: tokWord, text: src[i:j], offset: i})
			i = j
		}
	}
	toks = append(toks, token{kind: tokEOF, offset: len(src)})
	return toks, nil
}

func isWordByte(c byte) bool {
	if c < 0x80 && unicode.IsSpace(rune(c)) {
		return false
	}
	switch c {
	case ',', '\'', '=', '<', '>', '!', '[':
		return false
	}
	return true
}
