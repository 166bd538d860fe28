package eval

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/typst-lang/typst-core/value"
)

func parseIntLiteral(text string) (value.Value, error) {
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid integer literal %q", text)
	}
	return value.Int(n), nil
}

func parseFloatLiteral(text string) (value.Value, error) {
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid float literal %q", text)
	}
	return value.Float(f), nil
}

// unquote strips the surrounding quote characters and resolves the
// small escape set Typst string literals support. The scanner already
// validated well-formedness, so this never needs to error.
func unquote(text string) string {
	if len(text) < 2 {
		return text
	}
	inner := text[1 : len(text)-1]
	var sb strings.Builder
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c == '\\' && i+1 < len(inner) {
			i++
			switch inner[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			default:
				sb.WriteByte(inner[i])
			}
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
