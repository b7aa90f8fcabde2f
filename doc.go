// Package contractagent answers natural-language questions about legal
// contracts stored in a SQL warehouse.
//
// A question is turned into a prompt holding the contracts table schema,
// sent to a Gemini model together with the warehouse operations it may
// call, and the model's reply is executed: an operation call runs that
// operation, a bare SELECT runs through execute_sql, and any other text
// is returned as the answer. Every outcome is a result envelope:
//
//	{"result": {"results": [{"status": "Active", "contract_count": 12}]}}
//	{"error": "Tool execution failed: query is required."}
//
// Contracts can also be read from PDF, DOCX or plain text documents and
// returned as the 18 destination columns of the contracts table.
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/kadirpekel/contractagent/cmd/contractagent@latest
//
// Without a config file the environment is used (GEMINI_API_KEY,
// CONTRACT_DB_PATH, ...):
//
//	contractagent ask "How many contracts expire in the next 90 days?"
//	contractagent extract ./lease.pdf
//	contractagent serve --port 8080
//
// Or with a config file:
//
//	llm:
//	  api_key: "${GEMINI_API_KEY}"
//	warehouse:
//	  database:
//	    driver: postgres
//	    host: localhost
//	    database: contracts
//	  default_dataset: contract_data
//	  max_rows: 100
//
//	contractagent serve --config contractagent.yaml --watch
//
// # Packages
//
//	pkg/tool        result envelope, descriptors, toolsets
//	pkg/tool/sqltool   warehouse operations
//	pkg/tool/doctool   process_document
//	pkg/warehouse   SQL client, dialects, table qualification
//	pkg/extraction  document field extraction
//	pkg/agent       the dispatch loop
//	pkg/server      HTTP surface
//	pkg/mcpserver   MCP surface
package contractagent
