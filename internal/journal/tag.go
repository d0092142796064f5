package journal

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// PrefixMode decides how migration tags are prefixed.
type PrefixMode string

const (
	PrefixIndex     PrefixMode = "index"
	PrefixTimestamp PrefixMode = "timestamp"
	PrefixUnix      PrefixMode = "unix"
	PrefixNone      PrefixMode = "none"
)

// ParsePrefixMode validates a prefix mode name. Empty means index.
func ParsePrefixMode(s string) (PrefixMode, error) {
	switch m := PrefixMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return PrefixIndex, nil
	case PrefixIndex, PrefixTimestamp, PrefixUnix, PrefixNone:
		return m, nil
	}
	return "", fmt.Errorf("unknown migration prefix %q, expected index, timestamp, unix or none", s)
}

var adjectives = []string{
	"amazing", "brave", "clever", "daily", "eager", "fancy", "gentle", "happy",
	"icy", "jolly", "keen", "lively", "misty", "nifty", "odd", "plain",
	"quiet", "rapid", "silky", "tidy", "useful", "vivid", "wise", "young",
}

var nouns = []string{
	"alchemist", "badger", "comet", "dragon", "eagle", "falcon", "giant", "harbor",
	"island", "jackal", "kestrel", "lantern", "meadow", "nomad", "otter", "pilot",
	"quasar", "raven", "sparrow", "tiger", "unicorn", "voyager", "walrus", "zodiac",
}

func (f *Folder) tag(idx int, name string, now time.Time) string {
	slug := slugify(name)
	if slug == "" {
		slug = f.randomName()
	}
	switch f.Prefix {
	case PrefixTimestamp:
		return now.UTC().Format("20060102150405") + "_" + slug
	case PrefixUnix:
		return strconv.FormatInt(now.Unix(), 10) + "_" + slug
	case PrefixNone:
		return slug
	default:
		return fmt.Sprintf("%04d_%s", idx, slug)
	}
}

func (f *Folder) randomName() string {
	pick := rand.IntN
	if f.Rand != nil {
		pick = f.Rand.IntN
	}
	return adjectives[pick(len(adjectives))] + "_" + nouns[pick(len(nouns))]
}

// slugify keeps letters and digits and folds everything else to single
// underscores.
func slugify(name string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.TrimSpace(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pending = true
	}
	return b.String()
}
