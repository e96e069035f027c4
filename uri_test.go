package stun

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errMissingProtocolScheme = errors.New("missing protocol scheme")

func TestParseURI(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		testCases := []struct {
			rawURL            string
			expectedURLString string
			expectedScheme    SchemeType
			expectedSecure    bool
			expectedHost      string
			expectedPort      int
		}{
			{"stun:google.de", "stun:google.de:3478", SchemeTypeSTUN, false, "google.de", 3478},
			{"stun:google.de:1234", "stun:google.de:1234", SchemeTypeSTUN, false, "google.de", 1234},
			{"stuns:google.de", "stuns:google.de:5349", SchemeTypeSTUNS, true, "google.de", 5349},
			{"stun:[::1]:123", "stun:[::1]:123", SchemeTypeSTUN, false, "::1", 123},
		}

		for i, testCase := range testCases {
			uri, err := ParseURI(testCase.rawURL)
			assert.NoError(t, err, "testCase: %d %v", i, testCase)
			if err != nil {
				continue
			}
			assert.Equal(t, testCase.expectedScheme, uri.Scheme, "testCase: %d %v", i, testCase)
			assert.Equal(t, testCase.expectedURLString, uri.String(), "testCase: %d %v", i, testCase)
			assert.Equal(t, testCase.expectedSecure, uri.IsSecure(), "testCase: %d %v", i, testCase)
			assert.Equal(t, testCase.expectedHost, uri.Host, "testCase: %d %v", i, testCase)
			assert.Equal(t, testCase.expectedPort, uri.Port, "testCase: %d %v", i, testCase)
		}
	})

	t.Run("Failure", func(t *testing.T) {
		testCases := []struct {
			rawURL      string
			expectedErr error
		}{
			{"", ErrSchemeType},
			{":::", errMissingProtocolScheme},
			{"stun:[::1]:123a", ErrPort},
			{"google.de", ErrSchemeType},
			{"stun:", ErrHost},
			{"stun:google.de:abc", ErrPort},
			{"stun:google.de?transport=udp", ErrSTUNQuery},
			{"stuns:google.de?transport=udp", ErrSTUNQuery},
		}

		for i, testCase := range testCases {
			_, err := ParseURI(testCase.rawURL)
			var (
				urlErr  *url.Error
				addrErr *net.AddrError
			)
			switch {
			case errors.As(err, &urlErr):
				err = urlErr.Err
			case errors.As(err, &addrErr):
				err = fmt.Errorf(addrErr.Err) //nolint:err113,govet
			}
			assert.EqualError(t, err, testCase.expectedErr.Error(), "testCase: %d %v", i, testCase)
		}
	})
}

func TestURI_Network(t *testing.T) {
	udp, err := ParseURI("stun:google.de")
	assert.NoError(t, err)
	assert.Equal(t, "udp", udp.Network())

	tcp, err := ParseURI("stuns:google.de")
	assert.NoError(t, err)
	assert.Equal(t, "tcp", tcp.Network())
}
