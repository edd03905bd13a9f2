package op

import "github.com/santhosh-tekuri/jsonschema/v5"

const (
	addressPattern = `^0x[a-fA-F0-9]{40}$`
	hexPattern     = `^0x([a-fA-F0-9][a-fA-F0-9])*$`
	numberPattern  = `^0x([a-fA-F0-9]+)$|^([0-9]+)$`
)

var schema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"sender": { "type": "string", "pattern": "` + addressPattern + `" },
		"nonce": { "type": "string", "pattern": "` + numberPattern + `" },
		"initCode": { "type": "string", "pattern": "` + hexPattern + `" },
		"callData": { "type": "string", "pattern": "` + hexPattern + `" },
		"callGasLimit": { "type": "string", "pattern": "` + numberPattern + `" },
		"verificationGasLimit": { "type": "string", "pattern": "` + numberPattern + `" },
		"preVerificationGas": { "type": "string", "pattern": "` + numberPattern + `" },
		"maxFeePerGas": { "type": "string", "pattern": "` + numberPattern + `" },
		"maxPriorityFeePerGas": { "type": "string", "pattern": "` + numberPattern + `" },
		"sponsorAndData": { "type": "string", "pattern": "` + hexPattern + `" },
		"authorization": { "type": "string", "pattern": "` + hexPattern + `" }
	},
	"required": [
		"sender",
		"nonce",
		"callGasLimit",
		"verificationGasLimit",
		"preVerificationGas",
		"maxFeePerGas",
		"maxPriorityFeePerGas",
		"authorization"
	]
}`

var opSchema = jsonschema.MustCompileString("operation.json", schema)
