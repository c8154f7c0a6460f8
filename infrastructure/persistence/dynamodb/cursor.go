package dynamodb

import (
	"encoding/base64"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"pulse-backend/pkg/errors"
)

// encodeCursor turns a DynamoDB resume position into an opaque token.
// All key attributes in this table are strings, so the token is the
// base64url encoding of a flat name→value JSON object. An empty
// position encodes to "".
func encodeCursor(lastEvaluatedKey map[string]types.AttributeValue) (string, error) {
	if len(lastEvaluatedKey) == 0 {
		return "", nil
	}

	flat := make(map[string]string, len(lastEvaluatedKey))
	for name, av := range lastEvaluatedKey {
		s, ok := av.(*types.AttributeValueMemberS)
		if !ok {
			return "", errors.NewInternalError("resume position contains a non-string key attribute")
		}
		flat[name] = s.Value
	}

	raw, err := json.Marshal(flat)
	if err != nil {
		return "", errors.NewInternalError("failed to encode cursor").WithCause(err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// decodeCursor turns an opaque token back into a resume position.
// Callers must round-trip tokens unmodified; anything undecodable is a
// validation error.
func decodeCursor(cursor string) (map[string]types.AttributeValue, error) {
	if cursor == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, errors.NewValidationError("malformed cursor").WithCause(err)
	}

	var flat map[string]string
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, errors.NewValidationError("malformed cursor").WithCause(err)
	}
	if len(flat) == 0 {
		return nil, errors.NewValidationError("malformed cursor")
	}

	key := make(map[string]types.AttributeValue, len(flat))
	for name, value := range flat {
		key[name] = &types.AttributeValueMemberS{Value: value}
	}
	return key, nil
}
