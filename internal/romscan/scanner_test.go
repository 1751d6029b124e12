package romscan_test

import (
	"errors"
	"path/filepath"
	"testing"

	"artie/internal/faults"
	"artie/internal/logging"
	"artie/internal/romscan"
	"artie/internal/testsupport"
)

func TestScanFiltersAndSorts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.SeedRom(t, cfg, "snes", "Zelda.sfc", []byte("z"))
	testsupport.SeedRom(t, cfg, "snes", "Mario.sfc", []byte("m"))
	testsupport.SeedRom(t, cfg, "snes", "nested/Metroid.sfc", []byte("s"))
	testsupport.SeedRom(t, cfg, "snes", "gamelist.xml", []byte("<xml/>"))
	testsupport.SeedRom(t, cfg, "snes", "Mario.srm", []byte("save"))
	testsupport.SeedRom(t, cfg, "snes", ".hidden.sfc", []byte("h"))
	testsupport.SeedRom(t, cfg, "snes", ".media/box.sfc", []byte("b"))
	testsupport.SeedRom(t, cfg, "snes", "README", []byte("no extension"))

	scanner := romscan.NewScanner(cfg, logging.NewNop())
	roms, err := scanner.Scan("snes")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	want := []string{"Mario.sfc", "Zelda.sfc", filepath.Join("nested", "Metroid.sfc")}
	if len(roms) != len(want) {
		t.Fatalf("got %d roms, want %d: %+v", len(roms), len(want), roms)
	}
	for i, rel := range want {
		if roms[i].RelPath != rel {
			t.Errorf("roms[%d].RelPath = %q, want %q", i, roms[i].RelPath, rel)
		}
		if roms[i].System != "snes" {
			t.Errorf("roms[%d].System = %q", i, roms[i].System)
		}
	}
}

func TestScanMissingSystem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	scanner := romscan.NewScanner(cfg, logging.NewNop())
	if _, err := scanner.Scan("gba"); !errors.Is(err, faults.ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
}

func TestSystemsIncludesOverrides(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.SeedRom(t, cfg, "snes", "Mario.sfc", []byte("m"))
	testsupport.SeedRom(t, cfg, "gba", "Tetris.gba", []byte("t"))
	overrideDir := t.TempDir()
	cfg.Paths.SystemOverrides = map[string]string{"psx": overrideDir}

	scanner := romscan.NewScanner(cfg, logging.NewNop())
	systems, err := scanner.Systems()
	if err != nil {
		t.Fatalf("Systems: %v", err)
	}
	want := []string{"gba", "psx", "snes"}
	if len(systems) != len(want) {
		t.Fatalf("systems = %v, want %v", systems, want)
	}
	for i := range want {
		if systems[i] != want[i] {
			t.Fatalf("systems = %v, want %v", systems, want)
		}
	}
}

func TestFind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.SeedRom(t, cfg, "snes", "Mario.sfc", []byte("mario"))

	scanner := romscan.NewScanner(cfg, logging.NewNop())
	rom, err := scanner.Find("snes", "Mario.sfc")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if rom.Name != "Mario.sfc" || rom.Size != 5 {
		t.Fatalf("rom = %+v", rom)
	}

	if _, err := scanner.Find("snes", "Missing.sfc"); !errors.Is(err, faults.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestChecksumMatchesKnownValue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	// CRC32 (IEEE) check value for the standard "123456789" input.
	path := testsupport.SeedRom(t, cfg, "snes", "check.sfc", []byte("123456789"))

	crc, err := romscan.Checksum(path)
	if err != nil {
		t.Fatalf("Checksum: %v", err)
	}
	if crc != "CBF43926" {
		t.Fatalf("crc = %q, want CBF43926", crc)
	}
}
