package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"
)

const defaultPort = "9000"

type Options struct {
	// DSN is one or more comma separated host[:port] addresses, optionally
	// prefixed with clickhouse:// and followed by a query string. Only the
	// addresses are used; credentials come from the fields below.
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	DialTimeout     time.Duration
	Username        string
	Password        string
	Database        string
	// MaxExecutionTime caps each query server side. Defaults to a minute.
	MaxExecutionTime time.Duration
}

// Database owns the ClickHouse connection used by the record store and the
// migrator.
type Database struct {
	conn  clickhouse.Conn
	addrs []string
}

// New opens a native-protocol connection with LZ4 compression and pings it.
func New(ctx context.Context, opts Options, logger *zap.Logger) (*Database, error) {
	addrs, err := ParseAddrs(opts.DSN)
	if err != nil {
		return nil, err
	}

	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 30 * time.Second
	}
	maxExec := opts.MaxExecutionTime
	if maxExec <= 0 {
		maxExec = time.Minute
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Protocol: clickhouse.Native,
		Addr:     addrs,
		Settings: clickhouse.Settings{
			"max_execution_time": int(maxExec.Seconds()),
		},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout:     dialTimeout,
		MaxOpenConns:    opts.MaxOpenConns,
		MaxIdleConns:    opts.MaxIdleConns,
		ConnMaxLifetime: opts.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create clickhouse connection: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse at %s: %w", strings.Join(addrs, ","), err)
	}

	logger.Named("clickhouse").Info("connected",
		zap.Strings("addrs", addrs),
		zap.String("database", opts.Database))

	return &Database{conn: conn, addrs: addrs}, nil
}

// ParseAddrs extracts host:port addresses from dsn, adding the native port
// where it is missing.
func ParseAddrs(dsn string) ([]string, error) {
	rest := strings.TrimSpace(dsn)
	if scheme, after, ok := strings.Cut(rest, "://"); ok {
		if !strings.EqualFold(scheme, "clickhouse") && !strings.EqualFold(scheme, "tcp") {
			return nil, fmt.Errorf("unsupported clickhouse dsn scheme %q", scheme)
		}
		rest = after
	}
	rest, _, _ = strings.Cut(rest, "?")
	rest, _, _ = strings.Cut(rest, "/")
	if _, host, ok := strings.Cut(rest, "@"); ok {
		rest = host
	}

	var addrs []string
	for _, part := range strings.Split(rest, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, err := url.Parse("tcp://" + part); err != nil {
			return nil, fmt.Errorf("invalid clickhouse address %q: %w", part, err)
		}
		if !strings.Contains(part, ":") {
			part += ":" + defaultPort
		}
		addrs = append(addrs, part)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("clickhouse dsn %q has no address", dsn)
	}
	return addrs, nil
}

func (db *Database) Close() error {
	return db.conn.Close()
}

func (db *Database) Conn() clickhouse.Conn {
	return db.conn
}

func (db *Database) Addrs() []string {
	return append([]string(nil), db.addrs...)
}
