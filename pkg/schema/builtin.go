package schema

func intPtr(n int) *int           { return &n }
func floatPtr(x float64) *float64 { return &x }

// builtinSchemas returns fresh copies of the entities every shelf knows.
func builtinSchemas() []*Schema {
	return []*Schema{
		MustNew("project",
			Field{Name: "name", Type: TypeString, Required: true, Trim: true,
				MinLength: intPtr(1), MaxLength: intPtr(100), Charset: CharsetAlnumSpace},
			Field{Name: "description", Type: TypeString, Trim: true, MaxLength: intPtr(255)},
		),
		MustNew("task",
			Field{Name: "project_id", Type: TypeInteger, Required: true, Min: floatPtr(1)},
			Field{Name: "title", Type: TypeString, Required: true, Trim: true,
				MinLength: intPtr(1), MaxLength: intPtr(100)},
			Field{Name: "status", Type: TypeString, Default: "pending",
				Enum: []string{"pending", "in progress", "completed"}},
			Field{Name: "description", Type: TypeString, Trim: true, MaxLength: intPtr(255)},
			Field{Name: "priority", Type: TypeString, Default: "medium",
				Enum: []string{"low", "medium", "high"}},
			Field{Name: "due_date", Type: TypeTimestamp, Future: true},
			Field{Name: "created_at", Type: TypeTimestamp, Generate: GenerateNow},
		),
		MustNew("conversation",
			Field{Name: "conversation_id", Type: TypeUUID, Generate: GenerateUUID},
			Field{Name: "project_id", Type: TypeString, Required: true},
			Field{Name: "tags_id", Type: TypeString},
			Field{Name: "name", Type: TypeString, Required: true, Trim: true,
				MinLength: intPtr(1), MaxLength: intPtr(100)},
			Field{Name: "description", Type: TypeString, Trim: true, MaxLength: intPtr(255)},
			Field{Name: "start_timestamp", Type: TypeTimestamp, Generate: GenerateNow},
			Field{Name: "last_mod_timestamp", Type: TypeTimestamp, Generate: GenerateTouch},
			Field{Name: "dialogues", Type: TypeList, Default: []any{}},
		),
		MustNew("dialog",
			Field{Name: "conversation_id", Type: TypeString, Required: true},
			Field{Name: "message", Type: TypeString, Required: true},
			Field{Name: "response", Type: TypeString, Required: true},
		),
		MustNew("tag",
			Field{Name: "tag_id", Type: TypeUUID, Generate: GenerateUUID},
			Field{Name: "name", Type: TypeString, Required: true, Trim: true,
				MinLength: intPtr(1), MaxLength: intPtr(100)},
		),
		MustNew("snippet",
			Field{Name: "title", Type: TypeString, Required: true, Trim: true,
				MinLength: intPtr(1), MaxLength: intPtr(100), Charset: CharsetName},
			Field{Name: "language", Type: TypeString},
			Field{Name: "code", Type: TypeString, Required: true},
			Field{Name: "tags", Type: TypeStringList, Default: []any{}},
			Field{Name: "created_at", Type: TypeTimestamp, Generate: GenerateNow},
		),
	}
}
