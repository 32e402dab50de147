package golang

const fileTemplate = `// Code generated by avrogen. DO NOT EDIT.
// Source: {{.Source}}

package {{.Package}}
{{if .Imports}}
import (
{{- range .Imports}}
	"{{.}}"
{{- end}}
)
{{end}}
{{- with .Record}}
{{if .Doc}}{{comment .Doc}}
{{end}}type {{.Ident}} struct {
{{- range .Fields}}
{{- if .Doc}}
{{comment .Doc}}
{{- end}}
	{{.Ident}} {{.Type}} ` + "`" + `avro:"{{.Name}}" json:"{{.Name}}"` + "`" + `
{{- end}}
}
{{end}}
{{- with .Enum}}
{{if .Doc}}{{comment .Doc}}
{{end}}type {{.Ident}} string

const (
{{- range .Symbols}}
	{{.Ident}} {{$.Ident}} = {{printf "%q" .Name}}
{{- end}}
)

// Valid reports whether e is one of the declared symbols.
func (e {{.Ident}}) Valid() bool {
{{- if .Symbols}}
	switch e {
	case {{range $i, $s := .Symbols}}{{if $i}}, {{end}}{{$s.Ident}}{{end}}:
		return true
	}
{{- end}}
	return false
}

func (e {{.Ident}}) String() string { return string(e) }
{{end}}
{{- with .Fixed}}
{{if .Doc}}{{comment .Doc}}
{{end}}type {{.Ident}} [{{.Size}}]byte
{{end}}
// AvroSchema returns the canonical schema of {{.Ident}}.
func ({{.Ident}}) AvroSchema() string { return {{.SchemaVar}} }

const {{.SchemaVar}} = {{printf "%q" .Schema}}
`

type fileData struct {
	Source    string
	Package   string
	Imports   []string
	Ident     string
	SchemaVar string
	Schema    string
	Record    *recordData
	Enum      *enumData
	Fixed     *fixedData
}

type recordData struct {
	Ident  string
	Doc    string
	Fields []fieldData
}

type fieldData struct {
	Name  string
	Ident string
	Type  string
	Doc   string
}

type enumData struct {
	Ident   string
	Doc     string
	Symbols []symbolData
}

type symbolData struct {
	Name  string
	Ident string
}

type fixedData struct {
	Ident string
	Doc   string
	Size  int
}
