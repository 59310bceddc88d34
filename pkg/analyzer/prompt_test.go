package analyzer

import (
	"errors"
	"testing"
)

func TestParseClaims(t *testing.T) {
	t.Parallel()

	report := `## Debate Report

Alice and Bob disagree about launch history.

- [VERIFIED] Alice said the first satellite launched in 1957.
* [DISPUTED] Bob claimed the Moon landing happened in 1971.
[UNVERIFIABLE] Alice said her uncle worked at the launch site.
- [VERIFIED]
Some closing assessment without any marker.`

	claims := ParseClaims(report)
	if len(claims) != 3 {
		t.Fatalf("expected 3 claims, got %d: %+v", len(claims), claims)
	}

	want := []Claim{
		{Text: "Alice said the first satellite launched in 1957.", Verdict: VerdictVerified},
		{Text: "Bob claimed the Moon landing happened in 1971.", Verdict: VerdictDisputed},
		{Text: "Alice said her uncle worked at the launch site.", Verdict: VerdictUnverifiable},
	}
	for i, w := range want {
		if claims[i] != w {
			t.Errorf("claim %d: got %+v, want %+v", i, claims[i], w)
		}
	}
}

func TestRenderVerdicts(t *testing.T) {
	t.Parallel()

	in := "- [VERIFIED] one\n- [DISPUTED] two\n- [UNVERIFIABLE] three"
	want := "- ✅ one\n- ⚠️ two\n- ❓ three"
	if got := RenderVerdicts(in); got != want {
		t.Errorf("RenderVerdicts = %q, want %q", got, want)
	}

	plain := "a summary with no markers"
	if got := RenderVerdicts(plain); got != plain {
		t.Errorf("text without markers changed: %q", got)
	}
}

func TestParseClaimsNoMarkers(t *testing.T) {
	t.Parallel()

	if claims := ParseClaims("just a summary\nwith two lines"); claims != nil {
		t.Fatalf("expected no claims, got %+v", claims)
	}
}

func TestInstructionsPerMode(t *testing.T) {
	t.Parallel()

	debate := Instructions(ModeDebate, true)
	plain := Instructions(ModeDebate, false)
	summary := Instructions(ModeSummary, false)

	if debate == plain {
		t.Error("fact-check flag should change debate instructions")
	}
	if summary == debate || summary == plain {
		t.Error("summary instructions should differ from debate instructions")
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"transient", Transient(errors.New("x")), KindTransient},
		{"permanent", Permanent(errors.New("x")), KindPermanent},
		{"credential", Credential(errors.New("x")), KindCredential},
		{"wrapped", errors.Join(errors.New("outer"), Credential(errors.New("x"))), KindCredential},
		{"plain", errors.New("x"), KindTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := KindOf(tc.err); got != tc.want {
				t.Errorf("KindOf() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestModeIsValid(t *testing.T) {
	t.Parallel()

	if !ModeDebate.IsValid() || !ModeSummary.IsValid() {
		t.Error("built-in modes must be valid")
	}
	if Mode("podcast").IsValid() {
		t.Error("unknown mode must be invalid")
	}
}
