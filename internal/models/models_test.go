package models

import "testing"

func TestHappyPathTransitions(t *testing.T) {
	path := []ProjectStatus{
		ProjectStatusPending,
		ProjectStatusAnalyzing,
		ProjectStatusGeneratingPrompts,
		ProjectStatusGeneratingImages,
		ProjectStatusGeneratingVideos,
		ProjectStatusCompleted,
	}

	for i := 0; i < len(path)-1; i++ {
		if !CanTransition(path[i], path[i+1]) {
			t.Errorf("expected %s -> %s to be valid", path[i], path[i+1])
		}
	}
}

func TestErrorReachableFromAnywhere(t *testing.T) {
	from := []ProjectStatus{
		ProjectStatusPending, ProjectStatusAnalyzing, ProjectStatusGeneratingPrompts,
		ProjectStatusGeneratingImages, ProjectStatusGeneratingVideos, ProjectStatusCompleted,
	}
	for _, s := range from {
		if !CanTransition(s, ProjectStatusError) {
			t.Errorf("expected %s -> error to be valid", s)
		}
	}
}

func TestRestartFromError(t *testing.T) {
	if !CanTransition(ProjectStatusError, ProjectStatusAnalyzing) {
		t.Error("expected error -> analyzing (restart) to be valid")
	}
}

func TestInvalidTransitions(t *testing.T) {
	cases := []struct{ from, to ProjectStatus }{
		{ProjectStatusPending, ProjectStatusCompleted},
		{ProjectStatusPending, ProjectStatusGeneratingImages},
		{ProjectStatusCompleted, ProjectStatusAnalyzing},
		{ProjectStatusGeneratingVideos, ProjectStatusGeneratingImages},
		{ProjectStatusAnalyzing, ProjectStatusGeneratingImages},
	}
	for _, c := range cases {
		if CanTransition(c.from, c.to) {
			t.Errorf("expected %s -> %s to be rejected", c.from, c.to)
		}
	}
}

func TestValidPredecessorsUnknownTarget(t *testing.T) {
	if preds := ValidPredecessors(ProjectStatus("bogus")); len(preds) != 0 {
		t.Errorf("unknown target should have no predecessors, got %v", preds)
	}
}

func TestValidAspectRatio(t *testing.T) {
	for _, r := range []AspectRatio{AspectRatio16x9, AspectRatio9x16, AspectRatio4x5, AspectRatio1x1} {
		if !ValidAspectRatio(r) {
			t.Errorf("expected %s to be valid", r)
		}
	}
	if ValidAspectRatio("21:9") {
		t.Error("expected 21:9 to be rejected")
	}
}

func TestReferenceImages(t *testing.T) {
	url1 := "https://cdn.example.com/ref1.png"
	url2 := "https://cdn.example.com/ref2.png"
	empty := ""

	p := Project{InputImage1URL: &url1, InputImage2URL: &url2}
	refs := p.ReferenceImages()
	if len(refs) != 2 || refs[0] != url1 || refs[1] != url2 {
		t.Errorf("ReferenceImages() = %v", refs)
	}

	p = Project{InputImage2URL: &url2, InputImage1URL: &empty}
	refs = p.ReferenceImages()
	if len(refs) != 1 || refs[0] != url2 {
		t.Errorf("ReferenceImages() with empty slot 1 = %v", refs)
	}

	p = Project{}
	if refs := p.ReferenceImages(); len(refs) != 0 {
		t.Errorf("ReferenceImages() on empty project = %v", refs)
	}
}
