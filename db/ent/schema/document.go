package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/joseph-ayodele/doc-intake/constants"
	"github.com/joseph-ayodele/doc-intake/db/ent/schema/utils"
)

// DocumentsTable is the storage name of the Document schema.
const DocumentsTable = "documents"

// unixNanos stores timestamps as integers so both sqlite and postgres scan them the same way.
var unixNanos = map[string]string{dialect.Postgres: "bigint", dialect.SQLite: "integer"}

type Document struct {
	ent.Schema
}

func (Document) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: DocumentsTable},
	}
}

func (Document) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			NotEmpty().
			Immutable(),
		field.String("owner_id").NotEmpty(),
		field.String("title"),
		field.String("document_type").
			Validate(utils.EnumValidator(constants.DocumentTypesAsStrings()...)),
		// identity fields; "" means not found
		field.String("full_name").Default(""),
		field.String("date_of_birth").
			Default("").
			Validate(utils.OptionalPattern(`\d{4}-\d{2}-\d{2}`)),
		field.String("aadhar_number").
			Default("").
			Validate(utils.OptionalPattern(`\d{4} \d{4} \d{4}`)),
		field.String("gender").
			Default("").
			Validate(utils.EnumValidator("", "Male", "Female", "Other")),
		field.Text("address").Default(""),
		field.String("document_number").
			Default("").
			Validate(utils.OptionalPattern(`[A-Z0-9]+`)),
		// reviewer-added keys
		field.JSON("extra", map[string]string{}).Optional(),
		field.Text("original_text").Default(""),
		field.String("source_path").Default(""),
		field.String("content_hash").Default(""),
		field.Time("created_at").
			Default(time.Now).
			Immutable().
			SchemaType(unixNanos),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now).
			SchemaType(unixNanos),
	}
}

func (Document) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("owner_id", "created_at"),
		index.Fields("owner_id", "content_hash"),
	}
}
