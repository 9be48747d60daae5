package util

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("could not get user home directory: %v", err)
	}

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Path without tilde is unchanged",
			input:    "/data/saves",
			expected: "/data/saves",
		},
		{
			name:     "Relative path is unchanged",
			input:    "saves/slot1",
			expected: "saves/slot1",
		},
		{
			name:     "Bare tilde expands to home",
			input:    "~",
			expected: home,
		},
		{
			name:     "Tilde prefix expands to home",
			input:    "~/Dropbox/saves",
			expected: filepath.Join(home, "Dropbox/saves"),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ExpandPath(tc.input)
			if err != nil {
				t.Fatalf("ExpandPath(%q) returned error: %v", tc.input, err)
			}
			if result != tc.expected {
				t.Errorf("expected %q, but got %q", tc.expected, result)
			}
		})
	}
}

func TestInvertMap(t *testing.T) {
	forward := map[int]string{1: "one", 2: "two", 3: "three"}
	inverted := InvertMap(forward)

	if len(inverted) != len(forward) {
		t.Fatalf("expected %d entries, got %d", len(forward), len(inverted))
	}
	for k, v := range forward {
		if inverted[v] != k {
			t.Errorf("expected inverted[%q] = %d, got %d", v, k, inverted[v])
		}
	}
}

func TestMergeAndDeduplicate(t *testing.T) {
	result := MergeAndDeduplicate(
		[]string{"*.tmp", "*.bak"},
		[]string{"*.bak", "desktop.ini"},
		nil,
	)
	sort.Strings(result)

	expected := []string{"*.bak", "*.tmp", "desktop.ini"}
	if len(result) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, result)
	}
	for i := range expected {
		if result[i] != expected[i] {
			t.Errorf("expected %v, got %v", expected, result)
			break
		}
	}
}

func TestByteCountIEC(t *testing.T) {
	testCases := []struct {
		name     string
		input    int64
		expected string
	}{
		{
			name:     "Bytes",
			input:    512,
			expected: "512 B",
		},
		{
			name:     "Kibibytes",
			input:    2048,
			expected: "2.0 KiB",
		},
		{
			name:     "Mebibytes",
			input:    1536 * 1024,
			expected: "1.5 MiB",
		},
		{
			name:     "Gibibytes",
			input:    3 * 1024 * 1024 * 1024,
			expected: "3.0 GiB",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := ByteCountIEC(tc.input)
			if result != tc.expected {
				t.Errorf("expected %q, but got %q", tc.expected, result)
			}
		})
	}
}
