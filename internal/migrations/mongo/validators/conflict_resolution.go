package validators

import "go.mongodb.org/mongo-driver/bson"

var ConflictResolutionValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"resource_id",
			"action",
			"member_ids",
			"rejection_reason",
			"resolver_id",
			"resolved_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"resource_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"action": bson.M{
				"bsonType": "string",
				"enum":     []string{"approve", "rejectAll"},
			},

			"member_ids": bson.M{
				"bsonType": "array",
				"minItems": 2,
				"items": bson.M{
					"bsonType": "string",
				},
			},

			"approved_id": bson.M{
				"bsonType": "string",
			},

			"rejection_reason": bson.M{
				"bsonType": "string",
			},

			"resolver_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"resolved_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
