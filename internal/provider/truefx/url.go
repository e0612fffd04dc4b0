package truefx

import (
	"fmt"
	"strings"

	"fxgym/internal/model"
	"fxgym/internal/provider"
)

// DefaultBaseURL is the TrueFX historical download root.
const DefaultBaseURL = "https://www.truefx.com/dev/data"

// ArchiveURL builds <base>/2017/JANUARY-2017/EURUSD-2017-01.zip.
func ArchiveURL(base, symbol string, p model.Period) string {
	if base == "" {
		base = DefaultBaseURL
	}
	monthDir := fmt.Sprintf("%s-%04d", strings.ToUpper(p.Month.String()), p.Year)
	return fmt.Sprintf("%s/%04d/%s/%s", strings.TrimRight(base, "/"), p.Year, monthDir, provider.ArchiveFileName(symbol, p))
}

// zipMagic is the local file header signature. TrueFX answers missing
// months with an HTML page, so the body must be checked.
var zipMagic = []byte("PK\x03\x04")

func looksLikeZip(b []byte) bool {
	return len(b) >= len(zipMagic) && string(b[:len(zipMagic)]) == string(zipMagic)
}
