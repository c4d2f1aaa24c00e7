package security

import "testing"

func TestNewIPAllowlistRejectsBadEntries(t *testing.T) {
	for _, entries := range [][]string{
		{"not-an-ip"},
		{"185.93.239.0/99"},
		{"185.93.239.1", "garbage/24"},
	} {
		if _, err := NewIPAllowlist(entries); err == nil {
			t.Fatalf("NewIPAllowlist(%v): expected error", entries)
		}
	}
}

func TestAllowlistContains(t *testing.T) {
	al, err := NewIPAllowlist([]string{"185.93.239.1", " 10.0.0.0/8 ", "", "2001:db8::/32"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		ip   string
		want bool
	}{
		{ip: "185.93.239.1", want: true},
		{ip: "185.93.239.2", want: false},
		{ip: "10.1.2.3", want: true},
		{ip: "10.255.255.255", want: true},
		{ip: "11.0.0.1", want: false},
		{ip: "2001:db8::1", want: true},
		{ip: "2001:db9::1", want: false},
		{ip: "", want: false},
		{ip: "bogus", want: false},
	}
	for _, tt := range tests {
		if got := al.Contains(tt.ip); got != tt.want {
			t.Fatalf("Contains(%q) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}

func TestClientIPPrecedence(t *testing.T) {
	tests := []struct {
		name         string
		forwardedFor string
		realIP       string
		remoteAddr   string
		want         string
	}{
		{
			name:         "forwarded-for wins",
			forwardedFor: "185.93.239.1, 172.16.0.1",
			realIP:       "10.0.0.1",
			remoteAddr:   "172.16.0.2",
			want:         "185.93.239.1",
		},
		{
			name:       "real-ip next",
			realIP:     "185.93.239.1",
			remoteAddr: "172.16.0.2",
			want:       "185.93.239.1",
		},
		{
			name:       "remote addr last",
			remoteAddr: "185.93.239.1",
			want:       "185.93.239.1",
		},
		{
			name:         "whitespace trimmed",
			forwardedFor: "  185.93.239.1 , 10.0.0.1",
			want:         "185.93.239.1",
		},
		{
			name: "all empty",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClientIP(tt.forwardedFor, tt.realIP, tt.remoteAddr); got != tt.want {
				t.Fatalf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
