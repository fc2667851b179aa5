package docs

import _ "embed"

//go:embed asyncapi.yaml
var AsyncAPISpec []byte
