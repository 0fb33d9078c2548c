package domain

import "testing"

func TestBasePrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		vt   VehicleType
		want float64
		ok   bool
	}{
		{VehicleMinibus, 2.5, true},
		{VehiclePrivate, 4.0, true},
		{VehicleVolunteer, 0, true},
		{VehicleType("helicopter"), 0, false},
	}
	for _, tt := range tests {
		got, ok := BasePrice(tt.vt)
		if got != tt.want || ok != tt.ok {
			t.Errorf("%s: expected (%v, %v), got (%v, %v)", tt.vt, tt.want, tt.ok, got, ok)
		}
	}
}

func TestVehicleCatalog_ReturnsCopy(t *testing.T) {
	t.Parallel()

	c := VehicleCatalog()
	c[0].BasePrice = 99
	if p, _ := BasePrice(VehicleMinibus); p != 2.5 {
		t.Errorf("catalog mutated through returned slice: %v", p)
	}
}

func TestParseLanguage(t *testing.T) {
	t.Parallel()

	tests := map[string]Language{
		"ar":    LanguageArabic,
		"ar-BH": LanguageArabic,
		"en-US": LanguageEnglish,
		"":      LanguageEnglish,
		"fr":    LanguageEnglish,
	}
	for tag, want := range tests {
		if got := ParseLanguage(tag); got != want {
			t.Errorf("%q: expected %s, got %s", tag, want, got)
		}
	}
}

func TestUniversity_DisplayName(t *testing.T) {
	t.Parallel()

	u := University{Name: "University of Bahrain", NameAr: "جامعة البحرين"}
	if got := u.DisplayName(LanguageArabic); got != "جامعة البحرين" {
		t.Errorf("unexpected arabic name %q", got)
	}
	if got := u.DisplayName(LanguageEnglish); got != "University of Bahrain" {
		t.Errorf("unexpected english name %q", got)
	}

	p := Profile{FullName: "Sara"}
	if got := p.DisplayName(LanguageArabic); got != "Sara" {
		t.Errorf("expected english fallback, got %q", got)
	}
}

func TestRunningAverage(t *testing.T) {
	t.Parallel()

	if got := RunningAverage(0, 0, 4); got != 4 {
		t.Errorf("expected 4, got %v", got)
	}
	if got := RunningAverage(4, 1, 5); got != 4.5 {
		t.Errorf("expected 4.5, got %v", got)
	}
}

func TestEmergencyContacts(t *testing.T) {
	t.Parallel()

	contacts := EmergencyContacts()
	if len(contacts) != 3 {
		t.Fatalf("expected 3 contacts, got %d", len(contacts))
	}
	if contacts[0].Number != "999" {
		t.Errorf("expected emergency number first, got %s", contacts[0].Number)
	}
}
