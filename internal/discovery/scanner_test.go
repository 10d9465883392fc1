package discovery

import (
	"testing"

	"go.uber.org/zap"

	"dpsctl/internal/config"
)

func testScanner() *Scanner {
	return NewScanner(&config.DiscoveryConfig{
		Group:       "225.0.0.37",
		Port:        4431,
		ServiceName: "opendps",
	}, zap.NewNop())
}

func TestCollectDeduplicates(t *testing.T) {
	s := testScanner()
	seen := make(map[Record]struct{})

	announce := &Frame{
		Type: FrameAnnounce,
		Services: []Service{
			{Port: 5005, Type: ServiceUDP, Name: "opendps"},
		},
	}

	// The same (source, port, type) triple within one window yields one
	// record, however often it is announced.
	s.collect(seen, "10.0.0.5", announce)
	s.collect(seen, "10.0.0.5", announce)
	s.collect(seen, "10.0.0.5", announce)
	if len(seen) != 1 {
		t.Fatalf("records = %d, want 1", len(seen))
	}

	// A different source is a distinct device.
	s.collect(seen, "10.0.0.6", announce)
	if len(seen) != 2 {
		t.Fatalf("records = %d, want 2", len(seen))
	}

	// So is the same source advertising a different port.
	s.collect(seen, "10.0.0.5", &Frame{
		Type:     FrameAnnounce,
		Services: []Service{{Port: 5006, Type: ServiceUDP, Name: "opendps"}},
	})
	if len(seen) != 3 {
		t.Fatalf("records = %d, want 3", len(seen))
	}
}

func TestCollectIgnoresOtherServicesAndFrameTypes(t *testing.T) {
	s := testScanner()
	seen := make(map[Record]struct{})

	s.collect(seen, "10.0.0.5", &Frame{
		Type:     FrameAnnounce,
		Services: []Service{{Port: 80, Type: ServiceTCP, Name: "http"}},
	})
	s.collect(seen, "10.0.0.5", &Frame{
		Type:  FrameQuery,
		Query: &Query{ServiceType: ServiceUDP, Name: "*"},
	})
	s.collect(seen, "10.0.0.5", &Frame{Type: FrameBeacon})

	if len(seen) != 0 {
		t.Fatalf("records = %d, want 0", len(seen))
	}
}
