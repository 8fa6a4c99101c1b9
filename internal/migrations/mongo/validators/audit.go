package validators

import "go.mongodb.org/mongo-driver/bson"

var AuditEntryValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"_id", "event_type", "key", "occurred_at", "received_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":         bson.M{"bsonType": "string"},
			"event_type":  bson.M{"bsonType": "string", "minLength": 1},
			"key":         bson.M{"bsonType": "string"},
			"occurred_at": bson.M{"bsonType": "date"},
			"received_at": bson.M{"bsonType": "date"},
		},
	},
}
