//go:build linux

package hotkey

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestComboFeed(t *testing.T) {
	type ev struct {
		code  uint16
		value int32
	}
	tests := []struct {
		name     string
		events   []ev
		downs    int
		ups      int
		lastDown bool
	}{
		{"full combo", []ev{{keyLCtrl, keyPress}, {keyLShift, keyPress}, {keySpace, keyPress}, {keySpace, keyRelease}}, 1, 1, false},
		{"space alone", []ev{{keySpace, keyPress}, {keySpace, keyRelease}}, 0, 0, false},
		{"missing shift", []ev{{keyRCtrl, keyPress}, {keySpace, keyPress}}, 0, 0, false},
		{"autorepeat ignored", []ev{{keyLCtrl, keyPress}, {keyRShift, keyPress}, {keySpace, keyPress}, {keySpace, 2}, {keySpace, 2}}, 1, 0, true},
		{"modifier released first", []ev{{keyLCtrl, keyPress}, {keyLShift, keyPress}, {keySpace, keyPress}, {keyLCtrl, keyRelease}, {keySpace, keyRelease}}, 1, 1, false},
		{"modifier released before space", []ev{{keyLCtrl, keyPress}, {keyLShift, keyPress}, {keyLShift, keyRelease}, {keySpace, keyPress}}, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c combo
			downs, ups := 0, 0
			for _, e := range tt.events {
				down, up := c.feed(e.code, e.value)
				if down {
					downs++
				}
				if up {
					ups++
				}
			}
			if downs != tt.downs || ups != tt.ups {
				t.Errorf("downs=%d ups=%d, want %d/%d", downs, ups, tt.downs, tt.ups)
			}
			if c.space != tt.lastDown {
				t.Errorf("space held = %v, want %v", c.space, tt.lastDown)
			}
		})
	}
}

func record(typ, code uint16, value int32) []byte {
	b := make([]byte, inputEventSize)
	binary.LittleEndian.PutUint16(b[16:], typ)
	binary.LittleEndian.PutUint16(b[18:], code)
	binary.LittleEndian.PutUint32(b[20:], uint32(value))
	return b
}

func TestKeyEvents(t *testing.T) {
	var buf []byte
	buf = append(buf, record(evKey, keyLCtrl, keyPress)...)
	buf = append(buf, record(0, 0, 0)...) // EV_SYN
	buf = append(buf, record(evKey, keySpace, keyRelease)...)
	buf = append(buf, record(evKey, keySpace, keyPress)[:10]...)

	var got [][2]int64
	keyEvents(buf, func(code uint16, value int32) {
		got = append(got, [2]int64{int64(code), int64(value)})
	})
	want := [][2]int64{{keyLCtrl, keyPress}, {keySpace, keyRelease}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestScanKeyboards(t *testing.T) {
	dev, sys := t.TempDir(), t.TempDir()
	caps := map[string]string{
		"event0": "120013 0 0 0 0 0 0 0 0 fffffffffffffffe\n", // keyboard
		"event1": "100000 0\n",                                 // power button
		"event2": "",                                           // no capabilities file
	}
	for name, c := range caps {
		if err := os.WriteFile(filepath.Join(dev, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
		if c == "" {
			continue
		}
		d := filepath.Join(sys, name, "device", "capabilities")
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(d, "key"), []byte(c), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	os.WriteFile(filepath.Join(dev, "mice"), nil, 0o644)

	got, err := scanKeyboards(dev, sys)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dev, "event0")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("keyboards = %v, want %v", got, want)
	}
}
