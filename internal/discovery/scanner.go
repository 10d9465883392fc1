// internal/discovery/scanner.go
package discovery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dpsctl/internal/config"
)

// Record is one discovered device, deduplicated by the full triple within
// a scan window.
type Record struct {
	Source string `json:"source"`
	Port   uint16 `json:"port"`
	Type   byte   `json:"type"`
}

// Scanner locates devices on the local network by broadcasting query frames
// to a multicast group and collecting announce frames in return.
type Scanner struct {
	config *config.DiscoveryConfig
	logger *zap.Logger
}

// NewScanner creates a scanner with the given discovery configuration.
func NewScanner(cfg *config.DiscoveryConfig, logger *zap.Logger) *Scanner {
	return &Scanner{
		config: cfg,
		logger: logger.With(zap.String("component", "discovery")),
	}
}

// Scan runs one bounded scan window: a listener goroutine collects announce
// frames while the caller's flow periodically sends wildcard queries. The
// listener is torn down when the window closes; no state outlives the call.
func (s *Scanner) Scan(ctx context.Context) ([]Record, error) {
	group := &net.UDPAddr{
		IP:   net.ParseIP(s.config.Group),
		Port: s.config.Port,
	}
	if group.IP == nil {
		return nil, fmt.Errorf("invalid multicast group: %s", s.config.Group)
	}

	conn, err := net.ListenMulticastUDP("udp4", nil, group)
	if err != nil {
		return nil, fmt.Errorf("failed to join multicast group %s: %w", group, err)
	}
	defer conn.Close()

	scanID := uuid.NewString()
	s.logger.Debug("scan started",
		zap.String("scan_id", scanID),
		zap.String("group", group.String()),
		zap.Duration("window", s.config.ScanWindow),
	)

	listenCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan map[Record]struct{}, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go s.listen(listenCtx, conn, results, &wg)

	query := EncodeQuery(ServiceUDP, "*")
	ticker := time.NewTicker(s.config.QueryInterval)
	defer ticker.Stop()
	window := time.NewTimer(s.config.ScanWindow)
	defer window.Stop()

	if _, err := conn.WriteToUDP(query, group); err != nil {
		s.logger.Debug("query send failed", zap.Error(err))
	}

sendLoop:
	for {
		select {
		case <-ctx.Done():
			break sendLoop
		case <-window.C:
			break sendLoop
		case <-ticker.C:
			if _, err := conn.WriteToUDP(query, group); err != nil {
				s.logger.Debug("query send failed", zap.Error(err))
			}
		}
	}

	cancel()
	wg.Wait()
	seen := <-results

	records := make([]Record, 0, len(seen))
	for r := range seen {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Source != records[j].Source {
			return records[i].Source < records[j].Source
		}
		return records[i].Port < records[j].Port
	})

	s.logger.Debug("scan finished",
		zap.String("scan_id", scanID),
		zap.Int("devices", len(records)),
	)
	return records, nil
}

// listen receives datagrams until the context is cancelled, recording one
// entry per distinct (source, port, type) triple for announce frames that
// advertise the target service. Malformed datagrams are dropped silently:
// they are expected noise from foreign traffic on the group.
func (s *Scanner) listen(ctx context.Context, conn *net.UDPConn, results chan<- map[Record]struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	seen := make(map[Record]struct{})
	defer func() { results <- seen }()

	buf := make([]byte, 1024)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			s.logger.Debug("listener read error", zap.Error(err))
			continue
		}

		frame, err := DecodeFrame(buf[:n])
		if err != nil {
			continue
		}
		s.collect(seen, addr.IP.String(), frame)
	}
}

// collect merges one decoded frame into the scan's record set.
func (s *Scanner) collect(seen map[Record]struct{}, source string, frame *Frame) {
	if frame.Type != FrameAnnounce {
		return
	}
	for _, svc := range frame.Services {
		if svc.Name != s.config.ServiceName {
			continue
		}
		record := Record{
			Source: source,
			Port:   svc.Port,
			Type:   svc.Type,
		}
		if _, dup := seen[record]; dup {
			continue
		}
		seen[record] = struct{}{}
		s.logger.Debug("device announced",
			zap.String("source", record.Source),
			zap.Uint16("port", record.Port),
			zap.String("service_type", ServiceTypeName(record.Type)),
		)
	}
}
