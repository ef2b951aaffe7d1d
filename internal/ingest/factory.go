package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/onodera-10002/aozora/internal/logging"
)

// ChooseLoader picks a loader for the source string: http(s) URLs go to
// the web loader, .pdf paths to the PDF loader.
func ChooseLoader(source string, webTimeout time.Duration, logger *logging.Logger) (Loader, error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return NewWebLoader(source, webTimeout, logger), nil
	case strings.HasSuffix(strings.ToLower(source), ".pdf"):
		return NewPDFLoader(source, logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, source)
	}
}
