package core

import (
	"testing"
)

func TestParseRequirement(t *testing.T) {
	tests := []struct {
		input       string
		wantType    string
		wantName    string
		wantVer     string
		wantBinary  string
		wantFormula string
		wantErr     bool
	}{
		{"pkg:brew/python@3.12", "brew", "python", "3.12", "python3.12", "python@3.12", false},
		{"pkg:brew/python@3.11", "brew", "python", "3.11", "python3.11", "python@3.11", false},
		{"pkg:brew/node", "brew", "node", "", "node", "node", false},
		{"pkg:generic/python3", "generic", "python3", "", "python3", "python3", false},
		{"pkg:generic/python@3.12?binary=python3", "generic", "python", "3.12", "python3", "python@3.12", false},

		// Errors
		{"brew/python", "", "", "", "", "", true}, // missing pkg: prefix
		{"", "", "", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			r, err := ParseRequirement(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRequirement(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			if r.Ecosystem != tt.wantType {
				t.Errorf("Ecosystem = %q, want %q", r.Ecosystem, tt.wantType)
			}
			if r.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", r.Name, tt.wantName)
			}
			if r.Version != tt.wantVer {
				t.Errorf("Version = %q, want %q", r.Version, tt.wantVer)
			}
			if r.Binary != tt.wantBinary {
				t.Errorf("Binary = %q, want %q", r.Binary, tt.wantBinary)
			}
			if r.FormulaName() != tt.wantFormula {
				t.Errorf("FormulaName() = %q, want %q", r.FormulaName(), tt.wantFormula)
			}
			if r.String() != tt.input {
				t.Errorf("String() = %q, want %q", r.String(), tt.input)
			}
		})
	}
}

func TestParseRequirementRepositoryURL(t *testing.T) {
	r, err := ParseRequirement("pkg:brew/python@3.12?repository_url=https://brew.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if r.RepositoryURL != "https://brew.example.com" {
		t.Errorf("RepositoryURL = %q", r.RepositoryURL)
	}
	if r.Binary != "python3.12" {
		t.Errorf("Binary = %q, want python3.12", r.Binary)
	}
}
