package conn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPostgresDSN(t *testing.T) {
	testCases := map[string]struct {
		opt  PostgresOption
		want string
	}{
		"defaults": {
			opt:  PostgresOption{},
			want: "postgres://localhost:5432?sslmode=disable",
		},
		"full": {
			opt: PostgresOption{
				Host:     "db",
				Port:     6543,
				User:     "exec",
				Password: "p@ss",
				Database: "outcomes",
				SSLMode:  "require",
				Params:   map[string]string{"application_name": "execd", "": "skip"},
			},
			want: "postgres://exec:p%40ss@db:6543/outcomes?application_name=execd&sslmode=require",
		},
		"user only": {
			opt:  PostgresOption{User: "exec"},
			want: "postgres://exec@localhost:5432?sslmode=disable",
		},
		"conn string wins": {
			opt:  PostgresOption{ConnString: "host=x", Host: "db"},
			want: "host=x",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.opt.DSN())
		})
	}
}

func TestRedisOptionsDefaults(t *testing.T) {
	o := RedisOption{DB: 2}.options()
	assert.Equal(t, "localhost:6379", o.Addr)
	assert.Equal(t, 2, o.DB)
	assert.Equal(t, 5*time.Second, o.DialTimeout)

	o = RedisOption{Addr: "cache:6380", DialTimeout: time.Second}.options()
	assert.Equal(t, "cache:6380", o.Addr)
	assert.Equal(t, time.Second, o.DialTimeout)
}
