package command

import "slices"

// Parameter names a value a caller supplies in an execution context.
// The string form is the JSON key used on the wire. JobID is never sent by
// callers; the host fills it in.
type Parameter string

// Parameters understood by command templates.
const (
	Groups      Parameter = "group"
	PPaths      Parameter = "pfile"
	PPath       Parameter = "p"
	User        Parameter = "user"
	VPaths      Parameter = "vfile"
	VPath       Parameter = "v"
	JobID       Parameter = "job_id"
	ClientLogin Parameter = "client_login"
	ClientIP    Parameter = "client_ip"
	Validate    Parameter = "validate"
	Search      Parameter = "search"
	MaxXY       Parameter = "max_xy"
	Image       Parameter = "image"
	Text        Parameter = "text"
	Clip        Parameter = "clip"
	JSON        Parameter = "json"
	Seq         Parameter = "seq"
	Tag         Parameter = "tag"
)

// Kind selects how a parameter is rendered into a command.
type Kind int

const (
	// KindLiteral inserts the context value as-is.
	KindLiteral Kind = iota
	// KindList inserts the context values joined by commas.
	KindList
	// KindTempFile writes newline-joined values to a temp file and inserts its path.
	KindTempFile
	// KindJobID inserts the job identifier.
	KindJobID
	// KindFlag inserts "1" or "0" depending on whether validation is enabled.
	KindFlag
)

// Spec describes one template parameter.
type Spec struct {
	// Name is the placeholder used in templates, e.g. "p" in "%p%".
	Name      string
	Parameter Parameter
	Kind      Kind
	// Context reports whether the value is read from the execution context.
	Context bool
}

var specs = []Spec{
	{Name: "group", Parameter: Groups, Kind: KindList, Context: true},
	{Name: "pfile", Parameter: PPaths, Kind: KindTempFile, Context: true},
	{Name: "p", Parameter: PPath, Kind: KindLiteral, Context: true},
	{Name: "u", Parameter: User, Kind: KindLiteral, Context: true},
	{Name: "vfile", Parameter: VPaths, Kind: KindTempFile, Context: true},
	{Name: "v", Parameter: VPath, Kind: KindLiteral, Context: true},
	{Name: "guitoken", Parameter: JobID, Kind: KindJobID},
	{Name: "clientLogin", Parameter: ClientLogin, Kind: KindLiteral, Context: true},
	{Name: "clientIP", Parameter: ClientIP, Kind: KindLiteral, Context: true},
	{Name: "validate", Parameter: Validate, Kind: KindFlag},
	{Name: "search", Parameter: Search, Kind: KindLiteral, Context: true},
	{Name: "maxXY", Parameter: MaxXY, Kind: KindLiteral, Context: true},
	{Name: "image", Parameter: Image, Kind: KindLiteral, Context: true},
	{Name: "text", Parameter: Text, Kind: KindLiteral, Context: true},
	{Name: "clip", Parameter: Clip, Kind: KindLiteral, Context: true},
	{Name: "json", Parameter: JSON, Kind: KindLiteral, Context: true},
	{Name: "seq", Parameter: Seq, Kind: KindLiteral, Context: true},
	{Name: "tag", Parameter: Tag, Kind: KindLiteral, Context: true},
}

// Lookup returns the parameter spec for a template placeholder name.
// Names are case-sensitive.
func Lookup(name string) (Spec, bool) {
	i := slices.IndexFunc(specs, func(s Spec) bool { return s.Name == name })
	if i < 0 {
		return Spec{}, false
	}
	return specs[i], true
}

// SpecFor returns the spec of a parameter.
func SpecFor(p Parameter) (Spec, bool) {
	i := slices.IndexFunc(specs, func(s Spec) bool { return s.Parameter == p })
	if i < 0 {
		return Spec{}, false
	}
	return specs[i], true
}

// ParseParameter maps a wire key to its parameter.
func ParseParameter(key string) (Parameter, bool) {
	p := Parameter(key)
	if p == JobID {
		return "", false
	}
	_, ok := SpecFor(p)
	return p, ok
}
