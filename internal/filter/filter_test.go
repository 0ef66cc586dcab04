package filter

import (
	"reflect"
	"sync"
	"testing"
)

func TestCatalogue(t *testing.T) {
	all := All()
	if len(all) != 9 {
		t.Fatalf("len(All()) = %d, want 9", len(all))
	}

	want := map[ID]Category{
		Default:    CategoryPost,
		Blueprint:  CategoryHybrid,
		Halftone:   CategoryPost,
		ASCII:      CategoryPost,
		Pixel:      CategoryMaterial,
		Sketch:     CategoryHybrid,
		Glitch:     CategoryPost,
		Crystal:    CategoryMaterial,
		Claymation: CategoryMaterial,
	}
	for _, f := range all {
		if want[f.ID] != f.Category {
			t.Errorf("%s category = %s, want %s", f.ID, f.Category, want[f.ID])
		}
		if f.Performance < 1 || f.Performance > 3 {
			t.Errorf("%s performance = %d out of range", f.ID, f.Performance)
		}
		if f.Label == "" {
			t.Errorf("%s has no label", f.ID)
		}
	}

	all[0].Label = "mutated"
	if All()[0].Label == "mutated" {
		t.Error("All() must return a copy")
	}
}

func TestGetAndParse(t *testing.T) {
	if got := Get("nope"); got.ID != Default {
		t.Errorf("Get(unknown) = %s, want default", got.ID)
	}
	if got := Get(Crystal); got.Performance != 3 {
		t.Errorf("crystal performance = %d, want 3", got.Performance)
	}

	id, err := Parse(" Glitch ")
	if err != nil || id != Glitch {
		t.Errorf("Parse = %q, %v", id, err)
	}
	id, err = Parse("")
	if err != nil || id != Default {
		t.Errorf("Parse(\"\") = %q, %v", id, err)
	}
	if _, err := Parse("sepia"); err == nil {
		t.Error("expected error for unknown filter")
	}
}

func TestDerive_StateDeltas(t *testing.T) {
	def := DefaultPostProcessing()

	scroll := Derive(RenderScrolling)
	if scroll.Scanline.Density != def.Scanline.Density+0.5 {
		t.Errorf("scrolling density = %v", scroll.Scanline.Density)
	}

	building := Derive(RenderConstructing)
	if !building.Bloom.Enabled || building.Bloom.Intensity != 0.5 {
		t.Errorf("constructing bloom = %+v", building.Bloom)
	}
	if building.Bloom.Threshold != def.Bloom.Threshold {
		t.Error("constructing should keep bloom threshold")
	}

	failed := Derive(RenderError)
	if !failed.ChromaticAberration.Enabled {
		t.Error("error state should enable chromatic aberration")
	}
	if failed.ChromaticAberration.Offset != def.ChromaticAberration.Offset {
		t.Error("error state should keep the aberration offset")
	}

	for _, st := range []RenderState{RenderIdle, RenderChecking, RenderMaterialized, RenderState("UNKNOWN")} {
		if Derive(st) != def {
			t.Errorf("Derive(%s) should equal defaults", st)
		}
	}
}

func TestDerive_PureAndRestoring(t *testing.T) {
	for _, st := range RenderStates {
		a, b := Derive(st), Derive(st)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("Derive(%s) not deterministic", st)
		}
	}

	// Repeated scrolling does not accumulate.
	c := NewContext(Default, RenderIdle)
	c.SetSystemState(RenderScrolling)
	c.SetSystemState(RenderIdle)
	c.SetSystemState(RenderScrolling)
	if got := c.Config().Scanline.Density; got != 2.5 {
		t.Errorf("density after two scroll phases = %v, want 2.5", got)
	}

	// Away and back restores the defaults exactly.
	for _, st := range RenderStates {
		c.SetSystemState(st)
		c.SetSystemState(RenderIdle)
		if c.Config() != DefaultPostProcessing() {
			t.Errorf("config after %s -> IDLE differs from defaults", st)
		}
	}
}

func TestDefaults_AreIndependentCopies(t *testing.T) {
	a := DefaultPostProcessing()
	a.ChromaticAberration.Offset[0] = 1
	if DefaultPostProcessing().ChromaticAberration.Offset[0] != 0.003 {
		t.Error("defaults must not share state")
	}
}

func TestContext_SetFilterDoesNotTouchConfig(t *testing.T) {
	c := NewContext(Default, RenderConstructing)
	before := c.Config()

	if !c.SetFilter(Glitch) {
		t.Fatal("SetFilter(glitch) rejected")
	}
	if c.Filter() != Glitch {
		t.Errorf("Filter = %s, want glitch", c.Filter())
	}
	if c.Config() != before {
		t.Error("SetFilter changed config")
	}
	if c.SetFilter("sepia") {
		t.Error("unknown filter accepted")
	}
	if c.Filter() != Glitch {
		t.Error("rejected filter changed selection")
	}
}

func TestContext_SetConfigMerges(t *testing.T) {
	c := NewContext(Default, RenderIdle)
	c.SetConfig(Patch{Noise: &Noise{Enabled: false, Opacity: 0.2}})

	cfg := c.Config()
	if cfg.Noise.Enabled || cfg.Noise.Opacity != 0.2 {
		t.Errorf("noise = %+v", cfg.Noise)
	}
	if cfg.Vignette != DefaultPostProcessing().Vignette {
		t.Error("untouched groups must keep their values")
	}

	// Re-announcing the same state keeps the patch.
	c.SetSystemState(RenderIdle)
	if c.Config().Noise.Opacity != 0.2 {
		t.Error("patch lost on repeated state")
	}
	c.SetSystemState(RenderScrolling)
	if c.Config().Noise.Opacity != 0.05 {
		t.Error("state change should recompute from defaults")
	}
}

func TestNewContext_Defaults(t *testing.T) {
	c := NewContext("bogus", "")
	snap := c.Snapshot()
	if snap.Filter != Default {
		t.Errorf("Filter = %s, want default", snap.Filter)
	}
	if snap.State != RenderIdle {
		t.Errorf("State = %s, want IDLE", snap.State)
	}
	if snap.Device != DefaultDevice || snap.Detected {
		t.Errorf("Device = %+v detected=%v, want conservative defaults", snap.Device, snap.Detected)
	}
	if snap.Device.IsMobile || snap.Device.GPUTier != 2 {
		t.Error("defaults must be isMobile=false, gpuTier=2")
	}
}

func TestDetectMobile(t *testing.T) {
	tests := []struct {
		ua   string
		want bool
	}{
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)", true},
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8)", true},
		{"Opera/9.80 (J2ME/MIDP; Opera Mini/9.80)", true},
		{"Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X)", true},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64)", false},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0)", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := DetectMobile(tt.ua); got != tt.want {
			t.Errorf("DetectMobile(%q) = %v, want %v", tt.ua, got, tt.want)
		}
	}
}

func TestDetectGPUTier(t *testing.T) {
	tests := []struct {
		webgl    bool
		renderer string
		want     int
	}{
		{false, "NVIDIA GeForce RTX 4090", 1},
		{true, "", 2},
		{true, "Intel(R) UHD Graphics 620", 1},
		{true, "Mali-G78", 1},
		{true, "Adreno (TM) 430", 3},
		{true, "Adreno 4xx", 1},
		{true, "Adreno 650", 2},
		{true, "Apple M2", 2},
		{true, "NVIDIA GeForce RTX 4090", 3},
	}
	for _, tt := range tests {
		if got := DetectGPUTier(tt.webgl, tt.renderer); got != tt.want {
			t.Errorf("DetectGPUTier(%v, %q) = %d, want %d", tt.webgl, tt.renderer, got, tt.want)
		}
	}
}

func TestContext_DetectRunsOnce(t *testing.T) {
	c := NewContext(Default, RenderIdle)

	var wg sync.WaitGroup
	ran := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ran <- c.Detect(Probe{UserAgent: "iPhone", WebGL: true, Renderer: "Apple GPU"})
		}()
	}
	wg.Wait()
	close(ran)

	count := 0
	for r := range ran {
		if r {
			count++
		}
	}
	if count != 1 {
		t.Errorf("detection ran %d times, want 1", count)
	}

	c.Detect(Probe{UserAgent: "Windows", WebGL: true, Renderer: "NVIDIA"})
	snap := c.Snapshot()
	if !snap.Detected || !snap.Device.IsMobile || snap.Device.GPUTier != 2 {
		t.Errorf("Device = %+v, want first probe's result", snap.Device)
	}
}
