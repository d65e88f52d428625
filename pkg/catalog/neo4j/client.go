package neo4j

import (
	"context"
	"errors"
	"fmt"

	driver "github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Client is the narrow query surface the Store needs from a graph database.
type Client interface {
	ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (Result, error)
	ExecuteRead(ctx context.Context, cypher string, params map[string]any) (Result, error)
	// ExecuteWriteTx runs work in a single write transaction. The transaction
	// commits only when work returns nil.
	ExecuteWriteTx(ctx context.Context, work func(tx Tx) error) error
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Tx runs statements inside an open transaction.
type Tx interface {
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)
}

// Result is a fully consumed query response.
type Result struct {
	Records []Record
}

// Record maps returned column names to values.
type Record map[string]any

// Options configures a Bolt connection.
type Options struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

const constraintViolation = "Neo.ClientError.Schema.ConstraintValidationFailed"

// ErrMissingURI indicates the graph URI is not provided.
var ErrMissingURI = errors.New("graph URI is required")

// NewClient connects to Neo4j over Bolt and verifies connectivity.
func NewClient(ctx context.Context, opts Options) (Client, error) {
	if opts.URI == "" {
		return nil, ErrMissingURI
	}

	auth := driver.NoAuth()
	if opts.Username != "" {
		auth = driver.BasicAuth(opts.Username, opts.Password, "")
	}

	d, err := driver.NewDriverWithContext(opts.URI, auth, func(c *driver.Config) {
		if opts.MaxConnections > 0 {
			c.MaxConnectionPoolSize = opts.MaxConnections
		}
	})
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	if err := d.VerifyConnectivity(ctx); err != nil {
		_ = d.Close(ctx)
		return nil, fmt.Errorf("verify graph connectivity: %w", err)
	}

	return &boltClient{driver: d, database: opts.Database}, nil
}

type boltClient struct {
	driver   driver.DriverWithContext
	database string
}

func (c *boltClient) ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return c.run(ctx, driver.AccessModeWrite, cypher, params)
}

func (c *boltClient) ExecuteRead(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return c.run(ctx, driver.AccessModeRead, cypher, params)
}

func (c *boltClient) ExecuteWriteTx(ctx context.Context, work func(tx Tx) error) error {
	session := c.driver.NewSession(ctx, driver.SessionConfig{
		DatabaseName: c.database,
		AccessMode:   driver.AccessModeWrite,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx driver.ManagedTransaction) (any, error) {
		return nil, work(managedTx{tx: tx})
	})
	return err
}

func (c *boltClient) run(ctx context.Context, mode driver.AccessMode, cypher string, params map[string]any) (Result, error) {
	session := c.driver.NewSession(ctx, driver.SessionConfig{
		DatabaseName: c.database,
		AccessMode:   mode,
	})
	defer session.Close(ctx)

	res, err := session.Run(ctx, cypher, params)
	if err != nil {
		return Result{}, err
	}
	return consumeResult(ctx, res)
}

type managedTx struct {
	tx driver.ManagedTransaction
}

func (m managedTx) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	res, err := m.tx.Run(ctx, cypher, params)
	if err != nil {
		return Result{}, err
	}
	return consumeResult(ctx, res)
}

func consumeResult(ctx context.Context, res driver.ResultWithContext) (Result, error) {
	var records []Record
	for res.Next(ctx) {
		rec := res.Record()
		record := make(Record, len(rec.Keys))
		for _, key := range rec.Keys {
			value, _ := rec.Get(key)
			record[key] = value
		}
		records = append(records, record)
	}
	if err := res.Err(); err != nil {
		return Result{}, err
	}
	return Result{Records: records}, nil
}

// isConstraintViolation reports whether err is a uniqueness constraint failure.
func isConstraintViolation(err error) bool {
	var nerr *driver.Neo4jError
	return errors.As(err, &nerr) && nerr.Code == constraintViolation
}

func (c *boltClient) VerifyConnectivity(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

func (c *boltClient) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}
