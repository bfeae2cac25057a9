// Package definition parses and queries the in-repo job manifest
// (.minicd) that declares a project's jobs, their reference filters,
// and their notification targets.
package definition

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Definition is the parsed .minicd manifest.
type Definition struct {
	Name string         `yaml:"name"`
	Jobs map[string]Job `yaml:"jobs"`

	// JobOrder preserves the manifest's declaration order for Jobs,
	// since a Go map has none. Populated by UnmarshalYAML.
	JobOrder []string `yaml:"-"`
}

// UnmarshalYAML decodes Definition while separately recording the
// declaration order of the jobs mapping, which yaml.v3's map decoding
// alone would discard.
func (d *Definition) UnmarshalYAML(node *yaml.Node) error {
	type rawDefinition Definition
	var raw rawDefinition
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*d = Definition(raw)

	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value != "jobs" {
			continue
		}
		jobsNode := node.Content[i+1]
		for j := 0; j+1 < len(jobsNode.Content); j += 2 {
			d.JobOrder = append(d.JobOrder, jobsNode.Content[j].Value)
		}
	}
	return nil
}

// Job is a single job entry in the manifest.
type Job struct {
	On     *RefFilter `yaml:"on"`
	Notify []Notify   `yaml:"notify"`
	Shell  Shell      `yaml:"shell"`
	Await  bool       `yaml:"await"`
	Run    string     `yaml:"run"`
}

// RefFilter is a tagged choice of branch:<regex> or tag:<regex>,
// decoded from a single-key mapping in YAML.
type RefFilter struct {
	Kind  RefKind
	Regex string
}

// RefKind distinguishes a branch filter from a tag filter.
type RefKind int

const (
	// RefKindBranch matches against Reference values of kind Branch.
	RefKindBranch RefKind = iota
	// RefKindTag matches against Reference values of kind Tag.
	RefKindTag
)

// UnmarshalYAML decodes a RefFilter from a one-key mapping, e.g.
// {branch: "^main$"} or {tag: "v.*"}. If both keys are present, branch
// is used; a mapping with neither key is an error.
func (f *RefFilter) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("decoding ref filter: %w", err)
	}
	if branch, ok := raw["branch"]; ok {
		f.Kind = RefKindBranch
		f.Regex = branch
		return nil
	}
	if tag, ok := raw["tag"]; ok {
		f.Kind = RefKindTag
		f.Regex = tag
		return nil
	}
	return fmt.Errorf("ref filter must have a branch or tag key")
}

// Matches reports whether the filter matches ref: both must be the same
// variant, and the filter's text must compile as a regular expression
// that matches the ref's name. An invalid regex yields no match rather
// than an error, so a malformed manifest cannot crash the pipeline.
func (f *RefFilter) Matches(ref Reference) bool {
	if f == nil {
		return true
	}
	switch f.Kind {
	case RefKindBranch:
		if ref.Kind != RefKindBranch {
			return false
		}
	case RefKindTag:
		if ref.Kind != RefKindTag {
			return false
		}
	}
	re, err := regexp.Compile(f.Regex)
	if err != nil {
		return false
	}
	return re.MatchString(ref.Name)
}

// Reference is a parsed branch or tag name.
type Reference struct {
	Kind RefKind
	Name string
}

// ParseRef parses a ref path into a Reference. Exactly
// "refs/heads/<name>" yields Branch, "refs/tags/<name>" yields Tag;
// anything else is a parse error.
func ParseRef(refName string) (Reference, error) {
	const headsPrefix = "refs/heads/"
	const tagsPrefix = "refs/tags/"

	if len(refName) > len(headsPrefix) && refName[:len(headsPrefix)] == headsPrefix {
		return Reference{Kind: RefKindBranch, Name: refName[len(headsPrefix):]}, nil
	}
	if len(refName) > len(tagsPrefix) && refName[:len(tagsPrefix)] == tagsPrefix {
		return Reference{Kind: RefKindTag, Name: refName[len(tagsPrefix):]}, nil
	}
	return Reference{}, fmt.Errorf("malformed ref name %q: want refs/heads/<name> or refs/tags/<name>", refName)
}

// Display is the inverse of ParseRef.
func (r Reference) Display() string {
	switch r.Kind {
	case RefKindTag:
		return "refs/tags/" + r.Name
	default:
		return "refs/heads/" + r.Name
	}
}

// Shell resolves the script runner: a single string is the runner with
// no args; a list's head is the runner and the tail its arguments. A
// zero-value Shell means "use the system default shell".
type Shell struct {
	Runner string
	Args   []string
	Set    bool
}

// UnmarshalYAML accepts either a scalar string or a sequence of strings.
func (s *Shell) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var runner string
		if err := node.Decode(&runner); err != nil {
			return fmt.Errorf("decoding shell scalar: %w", err)
		}
		s.Runner = runner
		s.Set = true
		return nil
	case yaml.SequenceNode:
		var parts []string
		if err := node.Decode(&parts); err != nil {
			return fmt.Errorf("decoding shell list: %w", err)
		}
		if len(parts) == 0 {
			return fmt.Errorf("shell list must not be empty")
		}
		s.Runner = parts[0]
		s.Args = parts[1:]
		s.Set = true
		return nil
	default:
		return fmt.Errorf("shell must be a string or a list of strings")
	}
}

// Event is a job-outcome state that a Notify entry can trigger on.
type Event string

const (
	EventStart   Event = "start"
	EventSuccess Event = "success"
	EventFailure Event = "failure"
	EventFinish  Event = "finish"
	EventAll     Event = "all"
)

// Target is a single notification target: either an email address or a
// webhook.
type Target struct {
	Type    string            `yaml:"type"`
	Address string            `yaml:"address"`
	URL     string            `yaml:"url"`
	Method  string            `yaml:"method"`
	Headers map[string]string `yaml:"headers"`
}

// Notify is one notification rule: a list of targets and the events
// that trigger them. Absent events means the entry fires for no event.
type Notify struct {
	On []Event  `yaml:"on"`
	To []Target `yaml:"to"`
}

// Matches reports whether this notify entry fires for the given state,
// applying the finish = success|failure and all = everything expansions.
func (n Notify) Matches(state Event) bool {
	for _, e := range n.On {
		switch e {
		case EventAll:
			return true
		case EventFinish:
			if state == EventSuccess || state == EventFailure {
				return true
			}
		default:
			if e == state {
				return true
			}
		}
	}
	return false
}

// Parse deserializes a .minicd manifest from YAML bytes. Unknown fields
// are tolerated; a missing "name" or any job's "run" fails.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if def.Name == "" {
		return nil, fmt.Errorf("manifest missing required field: name")
	}
	for id, job := range def.Jobs {
		if job.Run == "" {
			return nil, fmt.Errorf("job %q missing required field: run", id)
		}
	}
	return &def, nil
}

// GetNotify returns every notify entry in job whose event set matches
// state.
func GetNotify(job Job, state Event) []Notify {
	var matched []Notify
	for _, n := range job.Notify {
		if n.Matches(state) {
			matched = append(matched, n)
		}
	}
	return matched
}
