package channel

type Channel string

const TokensChannel Channel = "callgate:tokens"
