package asm

import (
	"fmt"
	"strings"
	"unicode"
)

// TokenType classifies a token.
type TokenType int

const (
	Ident TokenType = iota
	String
	Number
	Directive
	Anchor
	Ref
	Symbol
	Marker
)

func (t TokenType) String() string {
	switch t {
	case Ident:
		return "identifier"
	case String:
		return "string"
	case Number:
		return "number"
	case Directive:
		return "directive"
	case Anchor:
		return "anchor"
	case Ref:
		return "reference"
	case Symbol:
		return "symbol"
	case Marker:
		return "marker"
	}
	return "unknown"
}

// Token is one lexical element. String tokens keep their quotes.
type Token struct {
	Value string
	Type  TokenType
	Line  int
}

// Tokenize splits source into lines of tokens. Blank and comment-only
// lines are dropped.
func Tokenize(source string) ([][]Token, error) {
	var lines [][]Token
	for n, text := range strings.Split(source, "\n") {
		toks, err := tokenizeLine(text, n+1)
		if err != nil {
			return nil, err
		}
		if len(toks) > 0 {
			lines = append(lines, toks)
		}
	}
	return lines, nil
}

func tokenizeLine(text string, line int) ([]Token, error) {
	var tokens []Token
	runes := []rune(text)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if unicode.IsSpace(r) {
			continue
		}
		if r == ';' {
			break
		}

		if r == '"' {
			start := i
			i++
			for i < len(runes) && runes[i] != '"' {
				if runes[i] == '\\' {
					i++
				}
				i++
			}
			if i >= len(runes) {
				return nil, fmt.Errorf("line %d: unterminated string", line)
			}
			tokens = append(tokens, Token{string(runes[start : i+1]), String, line})
			continue
		}

		if r == '<' || r == '>' || r == '=' || r == '!' {
			start := i
			if i+1 < len(runes) && runes[i+1] == '=' {
				i++
			}
			tokens = append(tokens, Token{string(runes[start : i+1]), Symbol, line})
			continue
		}

		if r == '-' || r == '+' || unicode.IsDigit(r) {
			start := i
			i++
			for i < len(runes) && isNumberRune(runes, i) {
				i++
			}
			tokens = append(tokens, Token{string(runes[start:i]), Number, line})
			i--
			continue
		}

		if r == '@' || r == '.' || r == '_' || unicode.IsLetter(r) {
			start := i
			i++
			for i < len(runes) && isIdentRune(runes[i]) {
				i++
			}
			word := string(runes[start:i])
			switch {
			case word == "@" || word == ".":
				return nil, fmt.Errorf("line %d: dangling %q", line, word)
			case r == '@':
				tokens = append(tokens, Token{word[1:], Ref, line})
			case r == '.' && len(tokens) == 0:
				tokens = append(tokens, Token{word[1:], Directive, line})
			case r == '.':
				tokens = append(tokens, Token{word[1:], Marker, line})
			case i < len(runes) && runes[i] == ':':
				tokens = append(tokens, Token{word, Anchor, line})
				i++
			default:
				tokens = append(tokens, Token{word, Ident, line})
			}
			i--
			continue
		}

		return nil, fmt.Errorf("line %d: unexpected character %q", line, r)
	}

	return tokens, nil
}

func isIdentRune(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' || c == '.'
}

func isNumberRune(runes []rune, i int) bool {
	c := runes[i]
	switch {
	case unicode.IsDigit(c), c == '.', c == '_', c == 'x', c == 'X':
		return true
	case (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F'):
		return true
	case (c == '-' || c == '+') && (runes[i-1] == 'e' || runes[i-1] == 'E'):
		return true
	}
	return false
}
