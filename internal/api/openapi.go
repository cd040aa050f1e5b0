package api

import (
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

const openAPIVersion = "3.0.3"

// buildOpenAPIDoc describes the hook ingress mounted at basePath and the
// read-only ops endpoints served here.
func buildOpenAPIDoc(basePath string) *openapi3.T {
	basePath = "/" + strings.Trim(basePath, "/")
	if basePath == "/" {
		basePath = "/hooks"
	}

	runParam := openapi3.NewPathParameter("runID").WithSchema(openapi3.NewStringSchema())

	return &openapi3.T{
		OpenAPI: openAPIVersion,
		Info: &openapi3.Info{
			Title:       "hookgw",
			Version:     "1.0",
			Description: "Hook endpoints take a bearer token or X-Hook-Token header.",
		},
		Paths: openapi3.NewPaths(
			openapi3.WithPath(basePath+"/wake", &openapi3.PathItem{
				Post: hookOperation("wake", "Queue a system event and optionally wake the primary session", 200, wakeSchema()),
			}),
			openapi3.WithPath(basePath+"/agent", &openapi3.PathItem{
				Post: hookOperation("agent", "Run an isolated agent turn", 202, agentSchema()),
			}),
			openapi3.WithPath(basePath+"/ping", &openapi3.PathItem{
				Post: hookOperation("ping", "Run a tenant ping and report to its callback", 202, pingSchema()),
			}),
			openapi3.WithPath("/healthz", &openapi3.PathItem{
				Get: &openapi3.Operation{
					OperationID: "healthz",
					Tags:        []string{"ops"},
					Responses:   responses(map[int]string{200: "Gateway is up"}),
				},
			}),
			openapi3.WithPath("/runs/{runID}", &openapi3.PathItem{
				Get: &openapi3.Operation{
					OperationID: "get_run",
					Tags:        []string{"ops"},
					Parameters:  openapi3.Parameters{{Value: runParam}},
					Responses:   responses(map[int]string{200: "Recorded run", 401: "Missing or wrong API token", 404: "Unknown run"}),
				},
			}),
		),
	}
}

func responses(byStatus map[int]string) *openapi3.Responses {
	opts := make([]openapi3.NewResponsesOption, 0, len(byStatus))
	for status, desc := range byStatus {
		opts = append(opts, openapi3.WithStatus(status, &openapi3.ResponseRef{
			Value: openapi3.NewResponse().WithDescription(desc),
		}))
	}
	return openapi3.NewResponses(opts...)
}

func hookOperation(name, summary string, okStatus int, body *openapi3.Schema) *openapi3.Operation {
	okDescription := "Run accepted"
	if okStatus == 200 {
		okDescription = "Event queued"
	}
	return &openapi3.Operation{
		OperationID: "hook_" + name,
		Summary:     summary,
		Tags:        []string{"hooks"},
		RequestBody: &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchema(body),
		},
		Responses: responses(map[int]string{
			okStatus: okDescription,
			400:      "Invalid payload",
			401:      "Missing or wrong hook token",
			403:      "Bad body signature",
			413:      "Payload too large",
		}),
	}
}

func object(required []string, props map[string]*openapi3.Schema) *openapi3.Schema {
	s := openapi3.NewObjectSchema()
	for name, prop := range props {
		s.WithProperty(name, prop)
	}
	s.Required = required
	return s
}

func wakeModeSchema() *openapi3.Schema {
	return openapi3.NewStringSchema().WithEnum("now", "next-heartbeat")
}

func wakeSchema() *openapi3.Schema {
	return object([]string{"text"}, map[string]*openapi3.Schema{
		"text": openapi3.NewStringSchema(),
		"mode": wakeModeSchema(),
	})
}

func agentSchema() *openapi3.Schema {
	return object([]string{"message"}, map[string]*openapi3.Schema{
		"message":                    openapi3.NewStringSchema(),
		"name":                       openapi3.NewStringSchema(),
		"agentId":                    openapi3.NewStringSchema(),
		"sessionKey":                 openapi3.NewStringSchema(),
		"wakeMode":                   wakeModeSchema(),
		"deliver":                    openapi3.NewBoolSchema(),
		"channel":                    openapi3.NewStringSchema(),
		"to":                         openapi3.NewStringSchema(),
		"model":                      openapi3.NewStringSchema(),
		"thinking":                   openapi3.NewStringSchema(),
		"timeoutSeconds":             openapi3.NewIntegerSchema().WithMin(1),
		"allowUnsafeExternalContent": openapi3.NewBoolSchema(),
	})
}

func pingSchema() *openapi3.Schema {
	callback := object([]string{"url"}, map[string]*openapi3.Schema{
		"url":            openapi3.NewStringSchema(),
		"token":          openapi3.NewStringSchema(),
		"allowedDomains": openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema()),
	})
	return object([]string{"update_id", "tenant_id", "callback"}, map[string]*openapi3.Schema{
		"update_id":    openapi3.NewStringSchema(),
		"tenant_id":    openapi3.NewStringSchema(),
		"callback_ref": openapi3.NewStringSchema(),
		"agentId":      openapi3.NewStringSchema(),
		"sessionKey":   openapi3.NewStringSchema(),
		"message":      openapi3.NewStringSchema(),
		"model":        openapi3.NewStringSchema(),
		"thinking":     openapi3.NewStringSchema(),
		"callback":     callback,
	})
}
