// Package influx records interaction telemetry to InfluxDB, falling back to a
// gzip-compressed line protocol file when the server is unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
)

// ErrNotConnected is returned by Record before Connect succeeds.
var ErrNotConnected = errors.New("influx sink not connected")

// retention applied to buckets created by the sink
const retentionSeconds = 60 * 60 * 24 * 90

// Config selects the server and backup location.
type Config struct {
	Enabled   bool
	URL       string
	Token     string
	Org       string
	Bucket    string
	BackupDir string
}

// Sink writes points to a single bucket.
type Sink struct {
	cfg    Config
	logger zerolog.Logger

	mu         sync.Mutex
	client     influxdb2.Client
	writer     influxdb2_api.WriteAPI
	backup     *gzip.Writer
	backupFile *os.File
	online     bool
}

// NewSink creates an unconnected sink.
func NewSink(log zerolog.Logger, cfg Config) *Sink {
	return &Sink{cfg: cfg, logger: log}
}

// BackupPath is the file used while the server is unreachable.
func (s *Sink) BackupPath() string {
	return filepath.Join(s.cfg.BackupDir, s.cfg.Bucket+".lp.gz")
}

// Connect pings the server. On failure it opens the backup file instead,
// so a nil error means Record will accept points either way.
// A disabled sink connects to nothing and drops every point.
func (s *Sink) Connect(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.client = influxdb2.NewClientWithOptions(s.cfg.URL, s.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := s.client.Ping(ctx)
	if err != nil || !running {
		s.logger.Warn().Err(err).Str("backupPath", s.BackupPath()).
			Msg("InfluxDB unreachable, writing telemetry to backup file")
		s.client.Close()
		s.client = nil
		return s.openBackup()
	}

	if err := s.ensureBucket(ctx); err != nil {
		return err
	}

	s.writer = s.client.WriteAPI(s.cfg.Org, s.cfg.Bucket)
	errorsCh := s.writer.Errors()
	go func() {
		for writeErr := range errorsCh {
			s.logger.Error().Err(writeErr).Str("bucket", s.cfg.Bucket).Msg("Error sending data to InfluxDB")
		}
	}()

	s.online = true
	s.logger.Info().Str("bucket", s.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (s *Sink) openBackup() error {
	if s.backup != nil {
		return nil
	}
	if err := os.MkdirAll(s.cfg.BackupDir, 0o755); err != nil {
		return fmt.Errorf("error creating backup dir: %w", err)
	}
	file, err := os.OpenFile(s.BackupPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	s.backupFile = file
	s.backup = gzip.NewWriter(file)
	return nil
}

func (s *Sink) ensureBucket(ctx context.Context) error {
	org, err := s.client.OrganizationsAPI().FindOrganizationByName(ctx, s.cfg.Org)
	if err != nil {
		s.logger.Info().Str("org", s.cfg.Org).Msg("Organization not found, creating")
		org, err = s.client.OrganizationsAPI().CreateOrganizationWithName(ctx, s.cfg.Org)
		if err != nil {
			return fmt.Errorf("create organization %s: %w", s.cfg.Org, err)
		}
	}

	if _, err := s.client.BucketsAPI().FindBucketByName(ctx, s.cfg.Bucket); err == nil {
		return nil
	}
	s.logger.Info().Str("bucket", s.cfg.Bucket).Msg("Bucket not found, creating")
	rule := domain.RetentionRuleTypeExpire
	_, err = s.client.BucketsAPI().CreateBucketWithName(ctx, org, s.cfg.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: retentionSeconds,
	})
	if err != nil {
		return fmt.Errorf("create bucket %s: %w", s.cfg.Bucket, err)
	}
	return nil
}

// Online reports whether points go to the server rather than the backup file.
func (s *Sink) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// Record writes a point to InfluxDB or the backup file.
func (s *Sink) Record(_ context.Context, point *influxdb2_write.Point) error {
	if !s.cfg.Enabled {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.online:
		s.writer.WritePoint(point)
	case s.backup != nil:
		line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
		if _, err := s.backup.Write([]byte(strings.TrimRight(line, "\n") + "\n")); err != nil {
			return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
		}
	default:
		return ErrNotConnected
	}
	return nil
}

// Close flushes pending writes and releases the client and backup file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.writer != nil {
		s.writer.Flush()
	}
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	if s.backup != nil {
		errs = append(errs, s.backup.Close())
		errs = append(errs, s.backupFile.Close())
		s.backup = nil
		s.backupFile = nil
	}
	s.online = false
	return errors.Join(errs...)
}
