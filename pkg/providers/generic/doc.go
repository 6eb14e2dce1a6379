// Package generic implements an adapter for any OpenAI-compatible endpoint.
//
// It is the adapter used to reach Bedrock-hosted models (us.amazon.nova-*,
// us.meta.llama*, amazon.titan-*) through an OpenAI-compatible access
// gateway, as well as local servers such as Ollama, vLLM or LM Studio.
// The API key is optional.
//
//	provider, err := generic.NewProvider(providers.ProviderConfig{
//	    Name:    "bedrock",
//	    Type:    "generic",
//	    BaseURL: "http://bedrock-gateway:8080/api/v1",
//	})
package generic
