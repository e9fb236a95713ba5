package auth

import (
	"context"
	"fmt"

	"github.com/nimbusdb/nimbus-go-driver/bson"
	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver"
)

// saslClient is the client side of one SASL mechanism's conversation.
type saslClient interface {
	Start() (mechanism string, payload []byte, err error)
	Next(challenge []byte) ([]byte, error)
	Completed() bool
}

// conductSaslConversation drives a saslStart/saslContinue exchange to
// completion, following the same conversationId/payload/done loop every
// SASL mechanism uses regardless of its internal cryptography.
func conductSaslConversation(ctx context.Context, conn driver.Connection, db string, client saslClient) error {
	mech, payload, err := client.Start()
	if err != nil {
		return fmt.Errorf("auth: %s: %w", mech, err)
	}

	idx, doc := bsoncore.AppendDocumentStart(nil)
	doc = bsoncore.AppendInt32Element(doc, "saslStart", 1)
	doc = bsoncore.AppendStringElement(doc, "mechanism", mech)
	doc = bsoncore.AppendBinaryElement(doc, "payload", 0x00, payload)
	doc, _ = bsoncore.AppendDocumentEnd(doc, idx)

	reply, err := runCommand(ctx, conn, db, doc)
	if err != nil {
		return fmt.Errorf("auth: %s: saslStart: %w", mech, err)
	}
	if err := extractCommandError(reply); err != nil {
		return fmt.Errorf("auth: %s: %w", mech, err)
	}

	conversationID, done, respPayload, err := parseSaslResponse(reply)
	if err != nil {
		return fmt.Errorf("auth: %s: %w", mech, err)
	}

	for {
		if done && client.Completed() {
			return nil
		}

		payload, err = client.Next(respPayload)
		if err != nil {
			return fmt.Errorf("auth: %s: %w", mech, err)
		}

		if done && client.Completed() {
			return nil
		}

		idx, doc := bsoncore.AppendDocumentStart(nil)
		doc = bsoncore.AppendInt32Element(doc, "saslContinue", 1)
		doc = bsoncore.AppendInt32Element(doc, "conversationId", conversationID)
		doc = bsoncore.AppendBinaryElement(doc, "payload", 0x00, payload)
		doc, _ = bsoncore.AppendDocumentEnd(doc, idx)

		reply, err = runCommand(ctx, conn, db, doc)
		if err != nil {
			return fmt.Errorf("auth: %s: saslContinue: %w", mech, err)
		}
		if err := extractCommandError(reply); err != nil {
			return fmt.Errorf("auth: %s: %w", mech, err)
		}
		conversationID, done, respPayload, err = parseSaslResponse(reply)
		if err != nil {
			return fmt.Errorf("auth: %s: %w", mech, err)
		}
	}
}

func parseSaslResponse(reply bson.Raw) (conversationID int32, done bool, payload []byte, err error) {
	elems, err := reply.Elements()
	if err != nil {
		return 0, false, nil, err
	}
	for _, e := range elems {
		switch e.Key() {
		case "conversationId":
			conversationID = int32(e.Value().AsInt64())
		case "done":
			done = e.Value().Boolean()
		case "payload":
			_, payload = e.Value().Binary()
		}
	}
	return conversationID, done, payload, nil
}
