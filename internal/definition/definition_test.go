package definition

import "testing"

func TestParseManifest(t *testing.T) {
	t.Parallel()

	src := `
name: example
jobs:
  build:
    on:
      branch: "^main$"
    run: "make build"
    notify:
      - on: [failure]
        to:
          - type: email
            address: oncall@example.com
  release:
    on:
      tag: "^v[0-9]+"
    await: true
    shell: ["bash", "-euo", "pipefail"]
    run: "make release"
`
	def, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if def.Name != "example" {
		t.Errorf("Name = %q, want example", def.Name)
	}
	build, ok := def.Jobs["build"]
	if !ok {
		t.Fatal("missing build job")
	}
	if build.On == nil || build.On.Kind != RefKindBranch || build.On.Regex != "^main$" {
		t.Errorf("build.On = %+v, want branch ^main$", build.On)
	}
	if build.Shell.Set {
		t.Errorf("build.Shell should be unset, got %+v", build.Shell)
	}

	release, ok := def.Jobs["release"]
	if !ok {
		t.Fatal("missing release job")
	}
	if !release.Await {
		t.Error("release.Await = false, want true")
	}
	if release.Shell.Runner != "bash" || len(release.Shell.Args) != 2 {
		t.Errorf("release.Shell = %+v, want bash with 2 args", release.Shell)
	}
	if len(def.JobOrder) != 2 || def.JobOrder[0] != "build" || def.JobOrder[1] != "release" {
		t.Errorf("JobOrder = %v, want [build release]", def.JobOrder)
	}
}

func TestParseRejectsMissingName(t *testing.T) {
	t.Parallel()
	if _, err := Parse([]byte("jobs: {}\n")); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestParseRejectsMissingRun(t *testing.T) {
	t.Parallel()
	src := "name: x\njobs:\n  build:\n    await: false\n"
	if _, err := Parse([]byte(src)); err == nil {
		t.Error("expected error for job missing run")
	}
}

func TestParseRefFilterAcceptsBothKeys(t *testing.T) {
	t.Parallel()
	src := `
name: x
jobs:
  build:
    run: x
    on:
      branch: main
      tag: v1
`
	// Both keys present: the decoder checks "branch" first and uses it,
	// so this should NOT error — a missing key is rejected only when
	// neither key is present.
	def, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if def.Jobs["build"].On == nil {
		t.Fatal("expected a filter to be set")
	}
}

func TestParseRefFilterRejectsNeitherKey(t *testing.T) {
	t.Parallel()
	src := `
name: x
jobs:
  build:
    run: x
    on:
      commit: abc
`
	if _, err := Parse([]byte(src)); err == nil {
		t.Error("expected error for ref filter with neither branch nor tag")
	}
}

func TestParseRef(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in      string
		wantErr bool
		kind    RefKind
		name    string
	}{
		{"refs/heads/main", false, RefKindBranch, "main"},
		{"refs/heads/feature/x", false, RefKindBranch, "feature/x"},
		{"refs/tags/v1.2.3", false, RefKindTag, "v1.2.3"},
		{"refs/notes/commits", true, 0, ""},
		{"main", true, 0, ""},
	}
	for _, c := range cases {
		ref, err := ParseRef(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseRef(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRef(%q): unexpected error: %v", c.in, err)
			continue
		}
		if ref.Kind != c.kind || ref.Name != c.name {
			t.Errorf("ParseRef(%q) = %+v, want kind=%v name=%q", c.in, ref, c.kind, c.name)
		}
		if ref.Display() != c.in {
			t.Errorf("Display() = %q, want %q", ref.Display(), c.in)
		}
	}
}

func TestRefFilterMatches(t *testing.T) {
	t.Parallel()

	branchFilter := &RefFilter{Kind: RefKindBranch, Regex: "^release-.*$"}
	tagFilter := &RefFilter{Kind: RefKindTag, Regex: "^v[0-9]+$"}

	cases := []struct {
		name   string
		filter *RefFilter
		ref    Reference
		want   bool
	}{
		{"nil filter matches anything", nil, Reference{Kind: RefKindBranch, Name: "main"}, true},
		{"branch filter matches branch", branchFilter, Reference{Kind: RefKindBranch, Name: "release-1.0"}, true},
		{"branch filter rejects non-match", branchFilter, Reference{Kind: RefKindBranch, Name: "main"}, false},
		{"branch filter rejects tag kind", branchFilter, Reference{Kind: RefKindTag, Name: "release-1.0"}, false},
		{"tag filter matches tag", tagFilter, Reference{Kind: RefKindTag, Name: "v1"}, true},
		{"invalid regex never matches", &RefFilter{Kind: RefKindBranch, Regex: "("}, Reference{Kind: RefKindBranch, Name: "main"}, false},
	}
	for _, c := range cases {
		if got := c.filter.Matches(c.ref); got != c.want {
			t.Errorf("%s: Matches = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestNotifyMatches(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		notif Notify
		state Event
		want  bool
	}{
		{"exact match", Notify{On: []Event{EventStart}}, EventStart, true},
		{"no match", Notify{On: []Event{EventStart}}, EventSuccess, false},
		{"finish covers success", Notify{On: []Event{EventFinish}}, EventSuccess, true},
		{"finish covers failure", Notify{On: []Event{EventFinish}}, EventFailure, true},
		{"finish excludes start", Notify{On: []Event{EventFinish}}, EventStart, false},
		{"all covers everything", Notify{On: []Event{EventAll}}, EventStart, true},
		{"empty on matches nothing", Notify{}, EventStart, false},
	}
	for _, c := range cases {
		if got := c.notif.Matches(c.state); got != c.want {
			t.Errorf("%s: Matches(%v) = %v, want %v", c.name, c.state, got, c.want)
		}
	}
}

func TestGetNotify(t *testing.T) {
	t.Parallel()

	job := Job{
		Notify: []Notify{
			{On: []Event{EventStart}, To: []Target{{Type: "email", Address: "a@x.com"}}},
			{On: []Event{EventFinish}, To: []Target{{Type: "webhook", URL: "https://x"}}},
		},
	}

	if got := GetNotify(job, EventStart); len(got) != 1 {
		t.Errorf("GetNotify(start) len = %d, want 1", len(got))
	}
	if got := GetNotify(job, EventSuccess); len(got) != 1 {
		t.Errorf("GetNotify(success) len = %d, want 1", len(got))
	}
	if got := GetNotify(job, EventFailure); len(got) != 1 {
		t.Errorf("GetNotify(failure) len = %d, want 1", len(got))
	}
}
