// Package neo4j implements the explorer's graph store access on the official
// Neo4j driver.
package neo4j

import (
	"context"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Statement is one parameterized Cypher statement.
type Statement struct {
	Cypher string
	Params map[string]any
}

// Querier executes Cypher. Every call uses its own session.
type Querier interface {
	// Read runs cypher in a read-only transaction and buffers all records.
	Read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error)
	// Write runs stmts in order inside one write transaction.
	Write(ctx context.Context, stmts []Statement) error
}

// Client wraps a driver and the target database.
//
// A Client should be created using NewClient.
type Client struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewClientParams configures NewClient. Database may be empty to use the
// server's default database.
type NewClientParams struct {
	URI      string
	Username string
	Password string
	Database string
}

// NewClient creates a driver for params.URI. It does not connect; use Verify
// to check connectivity.
func NewClient(params NewClientParams) (*Client, error) {
	if params.URI == "" {
		return nil, errors.New("neo4j uri is required")
	}
	driver, err := neo4j.NewDriverWithContext(params.URI, neo4j.BasicAuth(params.Username, params.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("could not create Neo4j driver: %w", err)
	}
	return &Client{driver: driver, database: params.Database}, nil
}

// Verify checks connectivity to the server.
func (c *Client) Verify(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

// Close releases the driver and its connection pool.
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// WithReadSession runs fn with a read session that is closed on every exit
// path.
func (c *Client) WithReadSession(ctx context.Context, fn func(neo4j.SessionWithContext) error) error {
	return c.withSession(ctx, neo4j.AccessModeRead, fn)
}

// WithWriteSession runs fn with a write session that is closed on every exit
// path.
func (c *Client) WithWriteSession(ctx context.Context, fn func(neo4j.SessionWithContext) error) error {
	return c.withSession(ctx, neo4j.AccessModeWrite, fn)
}

func (c *Client) withSession(ctx context.Context, mode neo4j.AccessMode, fn func(neo4j.SessionWithContext) error) (err error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: c.database,
	})
	defer func() {
		// the session must be released even when ctx is already done
		if cerr := session.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = fmt.Errorf("close session: %w", cerr)
		}
	}()
	return fn(session)
}

func (c *Client) Read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	var records []*neo4j.Record
	err := c.WithReadSession(ctx, func(session neo4j.SessionWithContext) error {
		res, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			result, err := tx.Run(ctx, cypher, params)
			if err != nil {
				return nil, err
			}
			return result.Collect(ctx)
		})
		if err != nil {
			return err
		}
		records = res.([]*neo4j.Record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) Write(ctx context.Context, stmts []Statement) error {
	if len(stmts) == 0 {
		return nil
	}
	return c.WithWriteSession(ctx, func(session neo4j.SessionWithContext) error {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			for _, stmt := range stmts {
				result, err := tx.Run(ctx, stmt.Cypher, stmt.Params)
				if err != nil {
					return nil, err
				}
				if _, err := result.Consume(ctx); err != nil {
					return nil, err
				}
			}
			return nil, nil
		})
		return err
	})
}

// IsRetryable reports whether err is a transient store failure worth
// retrying, such as a lost connection or a deadlock.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDecode) || errors.Is(err, context.Canceled) {
		return false
	}
	var connErr *neo4j.ConnectivityError
	if errors.As(err, &connErr) {
		return true
	}
	return neo4j.IsRetryable(err)
}
