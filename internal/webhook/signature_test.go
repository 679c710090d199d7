package webhook

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
)

type SignatureSuite struct {
	suite.Suite
	now      time.Time
	verifier *Verifier
}

func TestSignature(t *testing.T) {
	suite.Run(t, new(SignatureSuite))
}

func (s *SignatureSuite) SetupTest() {
	s.now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	s.verifier = NewVerifier("whsec_test", 300*time.Second).
		WithNow(func() time.Time { return s.now })
}

func (s *SignatureSuite) payload() []byte {
	return []byte(`{"id":"evt_1","type":"payment.succeeded","data":{"id":"py_99","amount":1000},"created":1750000000}`)
}

func (s *SignatureSuite) TestSignVerifyRoundTrip() {
	payload := s.payload()
	header := s.verifier.Sign(payload, s.now)
	s.NoError(s.verifier.Verify(payload, header))
}

func (s *SignatureSuite) TestVerifyToleranceBoundaryIsInclusive() {
	payload := s.payload()

	atBoundary := s.verifier.Sign(payload, s.now.Add(-300*time.Second))
	s.NoError(s.verifier.Verify(payload, atBoundary))

	// clock skew in the other direction is tolerated too
	future := s.verifier.Sign(payload, s.now.Add(300*time.Second))
	s.NoError(s.verifier.Verify(payload, future))
}

func (s *SignatureSuite) TestVerifyRejectsStaleTimestamp() {
	payload := s.payload()
	header := s.verifier.Sign(payload, s.now.Add(-301*time.Second))

	err := s.verifier.Verify(payload, header)
	s.Error(err)
	s.True(ierr.IsWebhookReplay(err))
}

func (s *SignatureSuite) TestVerifyRejectsTamperedPayload() {
	header := s.verifier.Sign(s.payload(), s.now)
	tampered := []byte(`{"id":"evt_1","type":"payment.succeeded","data":{"id":"py_other","amount":1000}}`)

	err := s.verifier.Verify(tampered, header)
	s.Error(err)
	s.True(ierr.IsInvalidSignature(err))
}

func (s *SignatureSuite) TestVerifyRejectsWrongSecret() {
	payload := s.payload()
	other := NewVerifier("whsec_other", 300*time.Second).
		WithNow(func() time.Time { return s.now })
	header := other.Sign(payload, s.now)

	err := s.verifier.Verify(payload, header)
	s.Error(err)
	s.True(ierr.IsInvalidSignature(err))
}

func (s *SignatureSuite) TestVerifyMalformedHeader() {
	payload := s.payload()

	for _, header := range []string{
		"",
		"nonsense",
		"ts=notanumber,v1=abc",
		"v1=abc",
		fmt.Sprintf("ts=%d", s.now.Unix()),
	} {
		err := s.verifier.Verify(payload, header)
		s.Error(err, "header %q", header)
		s.True(ierr.IsInvalidSignature(err), "header %q", header)
	}
}

func (s *SignatureSuite) TestEmptySecretSkipsVerification() {
	open := NewVerifier("", 300*time.Second)
	s.NoError(open.Verify(s.payload(), "garbage"))
}

func (s *SignatureSuite) TestConstructEvent() {
	payload := s.payload()
	header := s.verifier.Sign(payload, s.now)

	event, err := s.verifier.ConstructEvent(payload, header)
	s.Require().NoError(err)
	s.Equal("evt_1", event.ID)
	s.Equal("payment.succeeded", event.Type)
	s.Equal(float64(1000), event.Data["amount"])
	s.True(event.Created.Equal(time.Unix(1750000000, 0).UTC()))
}

func (s *SignatureSuite) TestConstructEventMercadoPagoShape() {
	// IPN style: `action` instead of `type`, numeric data.id
	payload := []byte(`{"action":"payment.updated","data":{"id":12345}}`)
	header := s.verifier.Sign(payload, s.now)

	event, err := s.verifier.ConstructEvent(payload, header)
	s.Require().NoError(err)
	s.Equal("payment.updated", event.Type)
	s.Equal("12345", event.ID)
}

func (s *SignatureSuite) TestConstructEventMalformed() {
	payload := []byte(`not json at all`)
	open := NewVerifier("", 300*time.Second)

	_, err := open.ConstructEvent(payload, "")
	s.Error(err)
	s.True(ierr.IsMalformedWebhook(err))

	_, err = open.ConstructEvent([]byte(`{"id":"evt_1","data":{}}`), "")
	s.Error(err)
	s.True(ierr.IsMalformedWebhook(err))
}
