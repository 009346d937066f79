package registry

import "fmt"

// Per-block configuration validators. These run at block write time so
// a published graph never carries a config the dispatcher cannot use.

func validateNoop(map[string]any) error { return nil }

func validatePayloadInput(data map[string]any) error {
	return optionalString(data, "path")
}

func validateJSONExtract(data map[string]any) error {
	if err := requireString(data, "path"); err != nil {
		return err
	}
	source, ok := data["source"]
	if !ok {
		return nil
	}
	s, isString := source.(string)
	if !isString || (s != "payload" && s != "memory") {
		return fmt.Errorf("source must be \"payload\" or \"memory\"")
	}
	return nil
}

func validateMemoParser(data map[string]any) error {
	if err := optionalString(data, "delimiter"); err != nil {
		return err
	}
	return optionalString(data, "memoPath")
}

func validateNillionCompute(data map[string]any) error {
	if err := requireString(data, "workloadId"); err != nil {
		return err
	}
	if err := optionalString(data, "inputPath"); err != nil {
		return err
	}
	return optionalString(data, "relativePath")
}

func validateNillionGraph(data map[string]any) error {
	if _, ok := data["nillionGraph"]; !ok {
		return fmt.Errorf("nillionGraph is required")
	}
	if mapping, ok := data["inputMapping"]; ok {
		m, isMap := mapping.(map[string]any)
		if !isMap {
			return fmt.Errorf("inputMapping must be an object")
		}
		for key, v := range m {
			if _, isString := v.(string); !isString {
				return fmt.Errorf("inputMapping.%s must be a context path string", key)
			}
		}
	}
	return nil
}

func validateNilaiLLM(data map[string]any) error {
	return requireString(data, "promptTemplate")
}

func validateZcashSend(data map[string]any) error {
	for _, key := range []string{"addressPath", "amountPath", "address", "memo", "privacyPolicy"} {
		if err := optionalString(data, key); err != nil {
			return err
		}
	}
	return nil
}

func validateConnectorRequest(data map[string]any) error {
	for _, key := range []string{"relativePath", "method", "bodyPath"} {
		if err := optionalString(data, key); err != nil {
			return err
		}
	}
	return nil
}

func validateCustomHTTP(data map[string]any) error {
	if err := requireString(data, "url"); err != nil {
		return err
	}
	for _, key := range []string{"method", "bodyPath"} {
		if err := optionalString(data, key); err != nil {
			return err
		}
	}
	return nil
}

func validateStateStore(data map[string]any) error {
	if err := requireString(data, "collectionId"); err != nil {
		return err
	}
	for _, key := range []string{"keyPath", "dataPath"} {
		if err := optionalString(data, key); err != nil {
			return err
		}
	}
	if fields, ok := data["encryptFields"]; ok {
		arr, isArr := fields.([]any)
		if !isArr {
			return fmt.Errorf("encryptFields must be an array of field names")
		}
		for _, f := range arr {
			if _, isString := f.(string); !isString {
				return fmt.Errorf("encryptFields entries must be strings")
			}
		}
	}
	return nil
}

func validateStateRead(data map[string]any) error {
	if err := requireString(data, "collectionId"); err != nil {
		return err
	}
	return optionalString(data, "keyPath")
}

func requireString(data map[string]any, key string) error {
	v, ok := data[key]
	if !ok {
		return fmt.Errorf("%s is required", key)
	}
	s, isString := v.(string)
	if !isString || s == "" {
		return fmt.Errorf("%s must be a non-empty string", key)
	}
	return nil
}

func optionalString(data map[string]any, key string) error {
	v, ok := data[key]
	if !ok {
		return nil
	}
	if _, isString := v.(string); !isString {
		return fmt.Errorf("%s must be a string", key)
	}
	return nil
}
