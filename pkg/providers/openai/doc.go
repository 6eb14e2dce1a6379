// Package openai implements the OpenAI Chat Completions adapter.
//
// Requests go to {base_url}/chat/completions with a Bearer token. The
// system instruction is sent as the first message with role "system".
//
//	provider, err := openai.NewProvider(providers.ProviderConfig{
//	    Name:    "openai",
//	    Type:    "openai",
//	    BaseURL: "https://api.openai.com/v1",
//	    APIKey:  os.Getenv("OPENAI_API_KEY"),
//	})
package openai
