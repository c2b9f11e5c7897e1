package descriptor

import (
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/webstorage/internal/ir"
)

// Entry is one trusted descriptor text.
type Entry struct {
	Text        string
	Description string
}

// Registry is the allow-list of descriptor texts an endpoint will prepare.
//
// A Registry is immutable after construction and safe for concurrent use.
// A nil *Registry trusts nothing.
type Registry struct {
	entries map[string]Entry
	logger  *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for trust rejections.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates a registry trusting the given entries.
// Texts are NFC-normalized so that Unicode-equivalent spellings of a
// descriptor are treated as the same descriptor.
func NewRegistry(entries []Entry, opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]Entry, len(entries)),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, e := range entries {
		e.Text = norm.NFC.String(e.Text)
		r.entries[e.Text] = e
	}
	return r
}

// NewRegistryFromTexts creates a registry trusting texts.
func NewRegistryFromTexts(texts []string, opts ...Option) *Registry {
	entries := make([]Entry, len(texts))
	for i, t := range texts {
		entries[i] = Entry{Text: t}
	}
	return NewRegistry(entries, opts...)
}

// Contains reports whether text is trusted.
func (r *Registry) Contains(text string) bool {
	if r == nil {
		return false
	}
	_, ok := r.entries[norm.NFC.String(text)]
	return ok
}

// Len returns the number of trusted texts.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Entries returns the trusted entries sorted by text.
func (r *Registry) Entries() []Entry {
	if r == nil {
		return nil
	}
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Entry) int {
		return strings.Compare(a.Text, b.Text)
	})
	return out
}

// Check returns an *IllegalDescriptorError unless desc's text is trusted.
// Rejections are logged at WARN with the text and its digest.
func (r *Registry) Check(desc ir.StatementDescriptor) error {
	if r.Contains(desc.Text) {
		return nil
	}
	digest, err := ir.DescriptorDigest(desc)
	if err != nil {
		digest = ""
	}
	logger := slog.Default()
	if r != nil {
		logger = r.logger
	}
	logger.Warn("untrusted statement descriptor rejected",
		"descriptor", desc.Text,
		"category", desc.Category.Name,
		"descriptor_digest", digest,
	)
	return &IllegalDescriptorError{Descriptor: desc.Text, Digest: digest}
}

// CheckAndParse checks trust first and parses only trusted text. The
// statement is parsed from the NFC form of the text, the same form the
// registry matched, and carries that form as its Descriptor.
func (r *Registry) CheckAndParse(desc ir.StatementDescriptor) (*Statement, error) {
	if err := r.Check(desc); err != nil {
		return nil, err
	}
	desc.Text = norm.NFC.String(desc.Text)
	return Parse(desc)
}

// Verify parses every trusted text and returns one error per malformed
// entry, in text order.
func (r *Registry) Verify() []error {
	var errs []error
	for _, e := range r.Entries() {
		if _, err := ParseText(e.Text); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
