package mpesa

import (
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type countingSource struct {
	calls int
	tok   *oauth2.Token
	err   error
}

func (c *countingSource) Token() (*oauth2.Token, error) {
	c.calls++
	return c.tok, c.err
}

func TestRedisTokenSource_Hit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	base := &countingSource{}
	src := &redisTokenSource{rdb: rdb, key: redisTokenKey + "key", base: base}

	mock.ExpectGet(redisTokenKey + "key").SetVal("shared-token")
	mock.ExpectTTL(redisTokenKey + "key").SetVal(20 * time.Minute)

	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "shared-token", tok.AccessToken)
	assert.WithinDuration(t, time.Now().Add(20*time.Minute), tok.Expiry, 5*time.Second)
	assert.Zero(t, base.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisTokenSource_MissStoresGrant(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	base := &countingSource{tok: &oauth2.Token{AccessToken: "fresh", Expiry: time.Now().Add(time.Hour)}}
	src := &redisTokenSource{rdb: rdb, key: redisTokenKey + "key", base: base}

	mock.ExpectGet(redisTokenKey + "key").RedisNil()
	mock.CustomMatch(func(expected, actual []interface{}) error {
		if len(actual) < 3 || actual[0] != "set" || actual[1] != redisTokenKey+"key" || actual[2] != "fresh" {
			return errors.New("unexpected set")
		}
		return nil
	}).ExpectSet(redisTokenKey+"key", "fresh", 59*time.Minute).SetVal("OK")

	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)
	assert.Equal(t, 1, base.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisTokenSource_GrantFailure(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	base := &countingSource{err: ErrAuth}
	src := &redisTokenSource{rdb: rdb, key: redisTokenKey + "key", base: base}

	mock.ExpectGet(redisTokenKey + "key").RedisNil()

	_, err := src.Token()
	assert.ErrorIs(t, err, ErrAuth)
}
