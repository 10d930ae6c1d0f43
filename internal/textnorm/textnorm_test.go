package textnorm

import "testing"

func TestIdentity(t *testing.T) {
	if got := Identity.Normalize("  Who built it? "); got != "  Who built it? " {
		t.Errorf("Identity changed input: %q", got)
	}
}

func TestArabic(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"المدرسة", "مدرس"},
		{"أحمد", "احمد"},
		{"مُحَمَّد", "محمد"},
		{"والكتاب", "كتاب"},
		{"من", "من"},
		{"الحضارة الفرعونية", "حضار فرعون"},
	}
	for _, tt := range tests {
		if got := Arabic.Normalize(tt.in); got != tt.want {
			t.Errorf("Arabic(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestByName(t *testing.T) {
	if ByName("arabic") != Arabic {
		t.Error("ByName(arabic) should return Arabic")
	}
	if ByName("") != Identity {
		t.Error("ByName(\"\") should return Identity")
	}
}
