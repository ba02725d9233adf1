package status

import "testing"

func TestRegistryDump(t *testing.T) {
	reg := NewRegistry()
	reg.Bools.Get("engine.paused").Store(true)
	reg.Ints.Get("engine.ticks").Store(42)
	reg.Floats.Get("hud.fraction").Set(0.5)
	reg.Strings.Get("hud.percent").Store("50%")
	reg.Strings.Get("hud.agents")

	d := reg.Dump()
	if d.Count != 5 || d.Count != reg.TotalCount() {
		t.Fatalf("Count = %d, TotalCount = %d, want 5", d.Count, reg.TotalCount())
	}
	if !d.Bools["engine.paused"] {
		t.Error("engine.paused not dumped")
	}
	if d.Ints["engine.ticks"] != 42 {
		t.Errorf("engine.ticks = %d", d.Ints["engine.ticks"])
	}
	if d.Floats["hud.fraction"] != 0.5 {
		t.Errorf("hud.fraction = %v", d.Floats["hud.fraction"])
	}
	if v, ok := d.Strings["hud.agents"]; !ok || v != "" {
		t.Errorf("hud.agents = %q, %v", v, ok)
	}
	if d.Strings["hud.percent"] != "50%" {
		t.Errorf("hud.percent = %q", d.Strings["hud.percent"])
	}
}

func TestMetricMapRangeIsSorted(t *testing.T) {
	m := NewMetricMap[int]()
	for _, k := range []string{"c", "a", "b"} {
		*m.Get(k) = len(k)
	}
	var keys []string
	m.Range(func(k string, _ *int) { keys = append(keys, k) })
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Errorf("Range order = %v", keys)
	}
}
