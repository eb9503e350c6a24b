package chain

// Revisions of the ticket NFT contract ABI.
const (
	RevisionCurrent = "current" // getNFTData returns the eventType enum
	RevisionLegacy  = "legacy"  // getNFTData has no eventType, it lives in the location text
)

const marketplaceABI = `[
  {"inputs":[],"name":"nextSaleId","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"saleId","type":"uint256"}],"name":"getSale","outputs":[
    {"components":[
      {"internalType":"address","name":"seller","type":"address"},
      {"internalType":"uint256","name":"tokenId","type":"uint256"},
      {"internalType":"uint256","name":"listPriceUsd","type":"uint256"},
      {"internalType":"uint256","name":"buyNowPriceUsd","type":"uint256"},
      {"internalType":"uint256","name":"currentBidUsd","type":"uint256"},
      {"internalType":"address","name":"currentBidder","type":"address"},
      {"internalType":"uint256","name":"endTime","type":"uint256"},
      {"internalType":"bool","name":"active","type":"bool"}
    ],"internalType":"struct Marketplace.Sale","name":"","type":"tuple"}
  ],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"tokenId","type":"uint256"},{"internalType":"uint256","name":"listPriceUsd","type":"uint256"},{"internalType":"uint256","name":"buyNowPriceUsd","type":"uint256"},{"internalType":"uint256","name":"duration","type":"uint256"}],"name":"listNFT","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"saleId","type":"uint256"}],"name":"placeBid","outputs":[],"stateMutability":"payable","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"saleId","type":"uint256"}],"name":"buyNow","outputs":[],"stateMutability":"payable","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"saleId","type":"uint256"}],"name":"finalizeSale","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"saleId","type":"uint256"}],"name":"cancelSale","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

const nftCommonABI = `
  {"inputs":[],"name":"totalSupply","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"ownerOf","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"getApproved","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"approve","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"internalType":"string","name":"picture","type":"string"},{"internalType":"string","name":"location","type":"string"},{"internalType":"uint256","name":"datetime","type":"uint256"}],"name":"mint","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"consume","outputs":[],"stateMutability":"nonpayable","type":"function"},`

const nftCurrentABI = `[` + nftCommonABI + `
  {"inputs":[{"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"getNFTData","outputs":[
    {"internalType":"string","name":"picture","type":"string"},
    {"internalType":"string","name":"location","type":"string"},
    {"internalType":"uint256","name":"datetime","type":"uint256"},
    {"internalType":"bool","name":"consumed","type":"bool"},
    {"internalType":"address","name":"originalOwner","type":"address"},
    {"internalType":"address","name":"currentOwner","type":"address"},
    {"internalType":"uint8","name":"eventType","type":"uint8"}
  ],"stateMutability":"view","type":"function"}
]`

const nftLegacyABI = `[` + nftCommonABI + `
  {"inputs":[{"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"getNFTData","outputs":[
    {"internalType":"string","name":"picture","type":"string"},
    {"internalType":"string","name":"location","type":"string"},
    {"internalType":"uint256","name":"datetime","type":"uint256"},
    {"internalType":"bool","name":"consumed","type":"bool"},
    {"internalType":"address","name":"originalOwner","type":"address"},
    {"internalType":"address","name":"currentOwner","type":"address"}
  ],"stateMutability":"view","type":"function"}
]`
