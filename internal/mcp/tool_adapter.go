// Copyright 2025 The toolgate Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mcp

import (
	"context"
	"fmt"

	"github.com/openswarm/toolgate/pkg/tools"
)

// ServerTool adapts a discovered tool to the tools.Tool interface.
// It wraps a tool definition and routes execution through the owning client.
type ServerTool struct {
	// serverName is the tool server that provides this tool
	serverName string

	// def is the discovered tool definition
	def Tool

	// client is the session used to execute this tool
	client *Client
}

// NewServerTool creates a new tool adapter.
func NewServerTool(serverName string, def Tool, client *Client) *ServerTool {
	return &ServerTool{
		serverName: serverName,
		def:        def,
		client:     client,
	}
}

// Name returns the namespaced tool name (e.g., "github.list_repos").
func (t *ServerTool) Name() string {
	return t.serverName + "." + t.def.Name
}

// Description returns the tool description from the server's definition.
func (t *ServerTool) Description() string {
	return t.def.Description
}

// Schema converts the server's JSON Schema to the registry schema format.
func (t *ServerTool) Schema() *tools.Schema {
	var inputSchema map[string]interface{}
	if len(t.def.InputSchema) > 0 {
		if err := codec.Unmarshal(t.def.InputSchema, &inputSchema); err != nil {
			// If schema parsing fails, return a minimal schema
			return &tools.Schema{
				Inputs: &tools.ParameterSchema{
					Type:        "object",
					Description: "Tool input parameters",
				},
			}
		}
	}

	return &tools.Schema{
		Inputs: convertJSONSchema(inputSchema),
		Outputs: &tools.ParameterSchema{
			Type:        "object",
			Description: "Tool execution result",
		},
	}
}

// Execute runs the tool through the client.
func (t *ServerTool) Execute(ctx context.Context, inputs map[string]interface{}) (map[string]interface{}, error) {
	res, err := t.client.CallTool(ctx, ToolCallRequest{
		Name:      t.def.Name, // original name, without the server namespace
		Arguments: inputs,
	})
	if err != nil {
		return nil, fmt.Errorf("tool call failed: %w", err)
	}

	if res.Failed() {
		return nil, res.Err
	}

	if len(res.Result) == 0 {
		return map[string]interface{}{}, nil
	}

	// Object results pass through; anything else is wrapped under "result".
	var obj map[string]interface{}
	if err := codec.Unmarshal(res.Result, &obj); err == nil {
		return obj, nil
	}

	var value interface{}
	if err := codec.Unmarshal(res.Result, &value); err != nil {
		return nil, fmt.Errorf("undecodable tool result: %w", err)
	}
	return map[string]interface{}{"result": value}, nil
}

// RegisterServerTools registers every discovered tool of a client into the
// registry, namespaced by server name.
func RegisterServerTools(registry *tools.Registry, client *Client) error {
	for _, def := range client.Tools() {
		if err := registry.Register(NewServerTool(client.ServerName(), def, client)); err != nil {
			return err
		}
	}
	return nil
}

// convertJSONSchema converts a JSON Schema to the registry's ParameterSchema.
// This is a simplified conversion that handles the most common cases.
func convertJSONSchema(schema map[string]interface{}) *tools.ParameterSchema {
	if schema == nil {
		return &tools.ParameterSchema{
			Type: "object",
		}
	}

	paramSchema := &tools.ParameterSchema{}

	if schemaType, ok := schema["type"].(string); ok {
		paramSchema.Type = schemaType
	} else {
		paramSchema.Type = "object"
	}

	if desc, ok := schema["description"].(string); ok {
		paramSchema.Description = desc
	}

	if paramSchema.Type == "object" {
		if props, ok := schema["properties"].(map[string]interface{}); ok {
			paramSchema.Properties = make(map[string]*tools.Property)
			for propName, propSchema := range props {
				propMap, ok := propSchema.(map[string]interface{})
				if !ok {
					continue
				}
				prop := &tools.Property{}

				if propType, ok := propMap["type"].(string); ok {
					prop.Type = propType
				}
				if propDesc, ok := propMap["description"].(string); ok {
					prop.Description = propDesc
				}
				if propEnum, ok := propMap["enum"].([]interface{}); ok {
					prop.Enum = propEnum
				}
				if propDefault, ok := propMap["default"]; ok {
					prop.Default = propDefault
				}
				if propFormat, ok := propMap["format"].(string); ok {
					prop.Format = propFormat
				}

				paramSchema.Properties[propName] = prop
			}
		}

		if required, ok := schema["required"].([]interface{}); ok {
			paramSchema.Required = make([]string, 0, len(required))
			for _, req := range required {
				if reqStr, ok := req.(string); ok {
					paramSchema.Required = append(paramSchema.Required, reqStr)
				}
			}
		}
	}

	return paramSchema
}
