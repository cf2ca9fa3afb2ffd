package pdf

import (
	"bytes"
	"testing"
	"time"
)

func sampleCard() *CardData {
	return &CardData{
		FirstName:    "Marko",
		LastName:     "Markovic",
		MemberNumber: "SIN-AT0042",
		JoinedAt:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestConfirmationLetter(t *testing.T) {
	data, err := ConfirmationLetter(&ConfirmationData{
		FullName:     "Marko Marković",
		Email:        "marko@example.com",
		QuicklookID:  "AB123456",
		City:         "Beograd",
		Organization: "Engineering",
		MemberNumber: "SIN-AT0042",
		JoinedAt:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("ConfirmationLetter() error: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("output does not start with %PDF header")
	}
	if len(data) < 500 {
		t.Errorf("output suspiciously small: %d bytes", len(data))
	}
}

func TestConfirmationLetter_ZeroJoinDate(t *testing.T) {
	data, err := ConfirmationLetter(&ConfirmationData{FullName: "Ana Anic"})
	if err != nil {
		t.Fatalf("ConfirmationLetter() error: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("output does not start with %PDF header")
	}
}

func TestMembershipCard(t *testing.T) {
	data, err := MembershipCard(sampleCard())
	if err != nil {
		t.Fatalf("MembershipCard() error: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("output does not start with %PDF header")
	}
}

func TestMembershipCardSheet(t *testing.T) {
	var members []*CardData
	for i := 0; i < 8; i++ { // spills onto a second page
		members = append(members, sampleCard())
	}
	data, err := MembershipCardSheet(members)
	if err != nil {
		t.Fatalf("MembershipCardSheet() error: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("output does not start with %PDF header")
	}
}

func TestMembershipCardSheet_Empty(t *testing.T) {
	if _, err := MembershipCardSheet(nil); err == nil {
		t.Error("expected error for empty member list")
	}
}

func TestQRPayload(t *testing.T) {
	got := qrPayload(sampleCard())
	want := "MEMBER_ID:SIN-AT0042|NAME:Marko|LASTNAME:Markovic"
	if got != want {
		t.Errorf("qrPayload() = %q, want %q", got, want)
	}
}

func TestToASCII(t *testing.T) {
	cases := map[string]string{
		"Đorđe Šušnjar": "DJordje Susnjar",
		"Čačak":         "Cacak",
		"Živko Žarić":   "Zivko Zaric",
		"plain":         "plain",
	}
	for in, want := range cases {
		if got := toASCII(in); got != want {
			t.Errorf("toASCII(%q) = %q, want %q", in, got, want)
		}
	}
}
