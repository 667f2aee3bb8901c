package neynar

// User is the subset of a Neynar user object the service relies on
type User struct {
	Fid               int64             `json:"fid"`
	Username          string            `json:"username"`
	DisplayName       string            `json:"display_name"`
	PfpURL            string            `json:"pfp_url"`
	CustodyAddress    string            `json:"custody_address"`
	FollowerCount     int64             `json:"follower_count"`
	VerifiedAddresses VerifiedAddresses `json:"verified_addresses"`
}

type VerifiedAddresses struct {
	EthAddresses []string `json:"eth_addresses"`
	SolAddresses []string `json:"sol_addresses"`
}

// bulkUsersResponse is the shape of /v2/farcaster/user/bulk
type bulkUsersResponse struct {
	Users []User `json:"users"`
}

// searchUsersResponse is the shape of /v2/farcaster/user/search
type searchUsersResponse struct {
	Result struct {
		Users []User `json:"users"`
	} `json:"result"`
}

// errorResponse is returned by Neynar on non-2xx responses
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
